package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"kashi/internal/assistant"
	"kashi/internal/ipc"
	"kashi/internal/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "kashi-ctl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "kashi-ctl",
		Usage: "Control a running kashi assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Usage:   "Control socket path",
				Value:   ipc.SocketPath,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the assistant",
				Value: 2 * time.Minute,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "trigger",
				Usage:  "Push to talk: listen for one command",
				Action: send(ipc.CmdTrigger, false),
			},
			{
				Name:      "say",
				Usage:     "Speak a text aloud",
				ArgsUsage: "<text>",
				Action:    send(ipc.CmdSay, true),
			},
			{
				Name:      "ask",
				Usage:     "Send a typed request and print the answer",
				ArgsUsage: "<text>",
				Action:    send(ipc.CmdAsk, true),
			},
			{
				Name:   "stop",
				Usage:  "Shut the assistant down",
				Action: send(ipc.CmdStop, false),
			},
			{
				Name:  "watch",
				Usage: "Print the assistant's events as they happen",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Web chat address",
						Value: "localhost:5000",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "User to follow (the local user when empty)",
					},
				},
				Action: watch,
			},
		},
		DefaultCommand: "trigger",
	}
}

func send(name string, needsText bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
		if needsText && text == "" {
			return fmt.Errorf("%s needs some text", name)
		}

		ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()

		resp, err := ipc.Send(ctx, cmd.String("socket"), ipc.ControlMessage{Cmd: name, Text: text})
		if err != nil {
			return fmt.Errorf("kashi not running: %w", err)
		}
		if !resp.OK {
			return errors.New(resp.Error)
		}
		if resp.Text != "" {
			fmt.Println(resp.Text)
		}
		return nil
	}
}

func watch(ctx context.Context, cmd *cli.Command) error {
	c, err := web.Dial(ctx, web.StreamURL(cmd.String("addr"), cmd.String("user")), time.Second)
	if err != nil {
		return err
	}
	defer c.Close()

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		f, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch f.Kind {
		case assistant.EventImages:
			fmt.Printf("[%s] %s\n", f.Kind, strings.Join(f.Images, ", "))
		default:
			fmt.Printf("[%s] %s\n", f.Kind, f.Text)
		}
	}
}
