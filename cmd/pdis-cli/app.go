package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hdt3213/pdis/lib/utils"
	"github.com/hdt3213/pdis/redis/client"
	"github.com/hdt3213/pdis/redis/protocol"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "pdis-cli",
		Usage:     "send commands to a pdis server",
		ArgsUsage: "[command [arg ...]]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "server host",
				EnvVars: []string{"PDIS_HOST"},
				Value:   "127.0.0.1",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "server port",
				EnvVars: []string{"PDIS_PORT"},
				Value:   6379,
			},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			benchCommand(),
		},
	}
}

func serverAddr(c *cli.Context) string {
	return net.JoinHostPort(c.String("host"), strconv.Itoa(c.Int("port")))
}

// runCommand sends the command given as arguments, or reads commands line by line from stdin
func runCommand(c *cli.Context) error {
	conn, err := client.MakeClient(serverAddr(c))
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", serverAddr(c), err)
	}
	conn.Start()
	defer conn.Close()

	out := c.App.Writer
	if c.NArg() > 0 {
		return send(conn, c.Args().Slice(), out)
	}
	scanner := bufio.NewScanner(c.App.Reader)
	prompt := func() { fmt.Fprintf(out, "%s> ", conn.Addr()) }
	prompt()
	for scanner.Scan() {
		args := strings.Fields(scanner.Text())
		if len(args) == 1 && (strings.EqualFold(args[0], "quit") || strings.EqualFold(args[0], "exit")) {
			return nil
		}
		if len(args) > 0 {
			if err := send(conn, args, out); err != nil {
				return err
			}
		}
		prompt()
	}
	return scanner.Err()
}

func send(conn *client.Client, args []string, out io.Writer) error {
	reply, err := conn.Send(utils.ToCmdLine(args...))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, client.Format(reply))
	return nil
}

var benchTests = map[string]func(key string, value string) []string{
	"set":  func(key string, value string) []string { return []string{"SET", key, value} },
	"get":  func(key string, value string) []string { return []string{"GET", key} },
	"incr": func(key string, value string) []string { return []string{"INCR", "counter:" + key} },
	"ping": func(key string, value string) []string { return []string{"PING"} },
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "measure throughput with concurrent clients",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "requests", Aliases: []string{"n"}, Usage: "total requests per test", Value: 10000},
			&cli.IntFlag{Name: "clients", Aliases: []string{"c"}, Usage: "number of parallel connections", Value: 50},
			&cli.IntFlag{Name: "data-size", Aliases: []string{"d"}, Usage: "value size of SET in bytes", Value: 3},
			&cli.IntFlag{Name: "keyspace", Aliases: []string{"r"}, Usage: "number of distinct keys", Value: 1000},
			&cli.StringFlag{Name: "tests", Aliases: []string{"t"}, Usage: "comma separated tests: " + strings.Join(benchTestNames(), ","), Value: "set,get"},
		},
		Action: func(c *cli.Context) error {
			opts := benchOptions{
				requests: c.Int("requests"),
				clients:  c.Int("clients"),
				dataSize: c.Int("data-size"),
				keyspace: c.Int("keyspace"),
			}
			if opts.requests <= 0 || opts.clients <= 0 || opts.keyspace <= 0 || opts.dataSize < 0 {
				return errors.New("requests, clients and keyspace must be positive")
			}
			pool := client.NewPool(serverAddr(c), opts.clients)
			defer pool.Close()
			for _, name := range strings.Split(c.String("tests"), ",") {
				name = strings.ToLower(strings.TrimSpace(name))
				test, ok := benchTests[name]
				if !ok {
					return fmt.Errorf("unknown test %q", name)
				}
				result, err := runBench(c.Context, pool, opts, test)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(c.App.Writer, "%s: %s\n", strings.ToUpper(name), result)
			}
			return nil
		},
	}
}

func benchTestNames() []string {
	names := make([]string, 0, len(benchTests))
	for name := range benchTests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type benchOptions struct {
	requests int
	clients  int
	dataSize int
	keyspace int
}

type benchResult struct {
	requests int
	errors   int64
	elapsed  time.Duration
}

func (r benchResult) String() string {
	rps := float64(r.requests) / r.elapsed.Seconds()
	return fmt.Sprintf("%d requests in %.2fs, %.2f requests per second, %d error replies",
		r.requests, r.elapsed.Seconds(), rps, r.errors)
}

// runBench sends opts.requests commands built by test through at most opts.clients connections
func runBench(ctx context.Context, pool *client.Pool, opts benchOptions, test func(key string, value string) []string) (benchResult, error) {
	value := strings.Repeat("x", opts.dataSize)
	var errReplies int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.clients)
	start := time.Now()
	for i := 0; i < opts.requests; i++ {
		key := "key:" + strconv.Itoa(i%opts.keyspace)
		g.Go(func() error {
			reply, err := pool.Send(ctx, utils.ToCmdLine(test(key, value)...))
			if err != nil {
				return err
			}
			if protocol.IsErrorReply(reply) {
				atomic.AddInt64(&errReplies, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}
	return benchResult{
		requests: opts.requests,
		errors:   errReplies,
		elapsed:  time.Since(start),
	}, nil
}
