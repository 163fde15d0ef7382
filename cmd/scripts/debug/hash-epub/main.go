package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/marvinsync/marvinsync/pkg/epubhash"
	"github.com/marvinsync/marvinsync/pkg/scanner"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()

	var opts struct {
		WordCount bool `short:"w" long:"word-count" description:"Also count the words in the spine documents"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/hash-epub <path/to/file.epub>")
		os.Exit(1)
	}

	hash, err := epubhash.Compute(args[0])
	if err != nil {
		log.Err(err).Fatal("hash error")
	}
	if hash == epubhash.Unavailable {
		fmt.Println("Hash: unavailable (unparseable container)")
	} else {
		fmt.Printf("Hash: %s\n", hash)
	}

	if opts.WordCount {
		count, err := scanner.CountWords(args[0])
		if err != nil {
			log.Err(err).Fatal("word count error")
		}
		fmt.Printf("Words: %d\n", count)
	}
}
