// Package main is an interactive menu client for a heliokv server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	v1 "github.com/ASHISH26940/heliokv/api/v1"
	"github.com/ASHISH26940/heliokv/internal/client"
)

const menu = `
Choose an option:
1 - Create key/value
2 - Read
3 - Update
4 - Delete
5 - Greet
0 - Quit
`

func main() {
	addr := flag.String("addr", envOrDefault("HELIOKV_ADDR", "http://localhost:8080"), "Server base URL")
	flag.Parse()

	c := client.New(*addr, nil)
	if err := run(context.Background(), os.Stdin, os.Stdout, c, nowMillis); err != nil {
		fmt.Fprintf(os.Stderr, "heliokv-cli: %v\n", err)
		os.Exit(1)
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// prompter reads one answer per line.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

var errQuit = errors.New("input closed")

func (p *prompter) line(question string) (string, error) {
	fmt.Fprintln(p.out, question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *prompter) int64(question string) (int64, error) {
	for {
		s, err := p.line(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, nil
		}
		fmt.Fprintf(p.out, "Not a number: %q\n", s)
	}
}

// run drives the menu until the user quits or input ends. Each operation
// stamps the request with the current time from now.
func run(ctx context.Context, in io.Reader, out io.Writer, c *client.Client, now func() int64) error {
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	for {
		choice, err := p.line(menu)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		err = dispatch(ctx, p, c, now, choice)
		switch {
		case errors.Is(err, errQuit), errors.Is(err, errExit):
			return nil
		case err != nil:
			// A failed call never ends the session.
			fmt.Fprintf(out, "Request failed: %v\n", err)
		}
	}
}

var errExit = errors.New("exit requested")

func dispatch(ctx context.Context, p *prompter, c *client.Client, now func() int64, choice string) error {
	switch choice {
	case "0":
		return errExit
	case "1":
		key, err := p.int64("Key:")
		if err != nil {
			return err
		}
		data, err := p.line("Data:")
		if err != nil {
			return err
		}
		res, err := c.Create(ctx, key, now(), []byte(data))
		if err != nil {
			return err
		}
		printResult(p.out, res)
	case "2":
		key, err := p.int64("Key:")
		if err != nil {
			return err
		}
		res, err := c.Read(ctx, key)
		if err != nil {
			return err
		}
		printResult(p.out, res)
	case "3":
		key, err := p.int64("Key:")
		if err != nil {
			return err
		}
		version, err := p.int64("Version:")
		if err != nil {
			return err
		}
		data, err := p.line("Data:")
		if err != nil {
			return err
		}
		res, err := c.Update(ctx, key, version, now(), []byte(data))
		if err != nil {
			return err
		}
		printResult(p.out, res)
	case "4":
		key, err := p.int64("Key:")
		if err != nil {
			return err
		}
		res, err := c.Delete(ctx, key)
		if err != nil {
			return err
		}
		if res.Status == v1.StatusOK {
			fmt.Fprintf(p.out, "Deleted version=%d\n", res.Version)
			return nil
		}
		printResult(p.out, res)
	case "5":
		name, err := p.line("Name:")
		if err != nil {
			return err
		}
		msg, err := c.Greet(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(p.out, msg)
	default:
		fmt.Fprintf(p.out, "Invalid option: %q\n", choice)
	}
	return nil
}

func printResult(out io.Writer, res v1.Result) {
	switch res.Status {
	case v1.StatusOK:
		fmt.Fprintf(out, "OK version=%d timestamp=%d data=%q\n", res.Version, res.Timestamp, res.Data)
	case v1.StatusNotFound:
		fmt.Fprintln(out, "Not found")
	case v1.StatusConflict:
		fmt.Fprintf(out, "Conflict: current version=%d timestamp=%d data=%q\n", res.Version, res.Timestamp, res.Data)
	default:
		fmt.Fprintf(out, "Unexpected status %q\n", res.Status)
	}
}
