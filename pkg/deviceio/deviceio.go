// Package deviceio abstracts file access to the connected reading device.
// All paths are device-relative strings using forward slashes; the transport
// (USB mount, Wi-Fi bridge) is the implementation's concern.
package deviceio

import "context"

type IO interface {
	Exists(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, data []byte, path string) error
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Mkdir(ctx context.Context, path string) error
	CopyFromDevice(ctx context.Context, path, localPath string) error
	CopyToDevice(ctx context.Context, localPath, path string) error
}
