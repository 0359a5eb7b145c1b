package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	secopclient "github.com/SampleEnvironment/secop-go/pkg/client"
)

var clientCmd = &cobra.Command{
	Use:   "client <ip:port>",
	Short: "Connect to a SECoP node and drop into a read/change/do REPL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		sess, err := secopclient.Dial(ctx, args[0])
		if err != nil {
			return fmt.Errorf("dial %s: %w", args[0], err)
		}
		defer sess.Close()

		fmt.Println(string(sess.RawDescribe()))
		return runREPL(ctx, sess)
	},
}

// runREPL implements a minimal line-oriented shell over a connected Session:
//
//	read <specifier>
//	change <specifier> <json-value>
//	do <specifier> [json-argument]
//	quit
func runREPL(ctx context.Context, sess *secopclient.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("secop> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("secop> ")
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "read":
			if len(fields) < 2 {
				fmt.Println("usage: read <specifier>")
				break
			}
			value, sigma, hasSigma, ts, err := sess.Read(ctx, fields[1])
			printResult(value, sigma, hasSigma, ts, err)
		case "change":
			if len(fields) < 3 {
				fmt.Println("usage: change <specifier> <json-value>")
				break
			}
			value, sigma, hasSigma, ts, err := sess.Change(ctx, fields[1], json.RawMessage(fields[2]))
			printResult(value, sigma, hasSigma, ts, err)
		case "do":
			if len(fields) < 2 {
				fmt.Println("usage: do <specifier> [json-argument]")
				break
			}
			var arg json.RawMessage
			if len(fields) == 3 {
				arg = json.RawMessage(fields[2])
			}
			result, err := sess.Do(ctx, fields[1], arg)
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			fmt.Println(string(result))
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
		fmt.Print("secop> ")
	}
	return scanner.Err()
}

func printResult(value json.RawMessage, sigma float64, hasSigma bool, ts float64, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if hasSigma {
		fmt.Printf("%s (sigma=%v, t=%v)\n", string(value), sigma, ts)
		return
	}
	fmt.Printf("%s (t=%v)\n", string(value), ts)
}
