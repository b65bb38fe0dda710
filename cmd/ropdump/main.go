// ropdump prints a human-readable disassembly of a CBOR-encoded remote
// operation request, read from a file or stdin.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

func main() {
	compressed := flag.Bool("zstd", false, "Input is zstd-compressed")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ropdump [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Disassembles a CBOR-encoded remote operation request.\n")
		fmt.Fprintf(os.Stderr, "Reads stdin when no file is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var (
		data []byte
		err  error
	)
	if flag.NArg() > 0 {
		data, err = os.ReadFile(flag.Arg(0))
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	if *compressed {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		data, err = decoder.DecodeAll(data, nil)
		decoder.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decompressing input: %v\n", err)
			os.Exit(1)
		}
	}

	req, err := bytecode.UnmarshalRequest(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding request: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(bytecode.Disassemble(req))
}
