package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/format"
	"github.com/mikey/digest-relay/internal/parser"
)

var parseCommand = &cli.Command{
	Name:  "parse",
	Usage: "Parse a saved digest e-mail and print the composed message",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "RFC 822 message file (stdin if not specified)",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		raw, err := readInput(cmd.String("file"))
		if err != nil {
			return err
		}

		return invoke(func(p *parser.Parser, c *format.Composer, logger *zap.Logger) {
			defer logger.Sync()

			parts := p.Decode(raw)
			result := p.Parse(parts)
			logger.Debug("Parsed message",
				zap.String("subject", parts.Subject),
				zap.Int("listings", len(result.Listings)))

			fmt.Fprintln(cmd.Root().Writer, c.Compose(parts, result))
		})
	},
}

var checkCommand = &cli.Command{
	Name:  "check",
	Usage: "Deliver the newest digest if it is fresh and not yet delivered",
	Flags: []cli.Flag{userFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runOperation(cmd, func(ops *core.Operations, userID string) *core.OperationResult {
			return ops.CheckAndDeliver(ctx, userID)
		})
	},
}

var forceCommand = &cli.Command{
	Name:  "force",
	Usage: "Deliver the newest digest even if it was delivered already",
	Flags: []cli.Flag{userFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runOperation(cmd, func(ops *core.Operations, userID string) *core.OperationResult {
			return ops.ForceDeliver(ctx, userID)
		})
	},
}

var resetCommand = &cli.Command{
	Name:  "reset",
	Usage: "Mark the newest digest as delivered without sending it",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runOperation(cmd, func(ops *core.Operations, _ string) *core.OperationResult {
			return ops.Reset(ctx)
		})
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Show the cursor and mailbox settings",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return invoke(func(cfg *config.Config, cursor *core.CursorService, logger *zap.Logger) {
			defer logger.Sync()
			imapCfg := cfg.GetIMAP()
			digest := cfg.GetDigest()

			lastSeen := "none"
			if c, ok := cursor.Get(); ok {
				lastSeen = c.String()
			}

			w := cmd.Root().Writer
			fmt.Fprintf(w, "state:                %s\n", cfg.GetState().Type)
			fmt.Fprintf(w, "state file:           %s\n", cfg.StateFilePath())
			fmt.Fprintf(w, "folder:               %s\n", imapCfg.Folder)
			fmt.Fprintf(w, "query:                %s\n", imapCfg.Query)
			fmt.Fprintf(w, "max age:              %s\n", digest.MaxAge)
			fmt.Fprintf(w, "last seen:            %s\n", lastSeen)
			fmt.Fprintf(w, "send watcher to user: %t\n", digest.SendWatcherToUser)
		})
	},
}

var userFlag = &cli.StringFlag{
	Name:  "user",
	Usage: "Chat id that receives a copy (defaults to telegram.user_chat_id)",
}

func runOperation(cmd *cli.Command, op func(ops *core.Operations, userID string) *core.OperationResult) error {
	var res *core.OperationResult

	err := invoke(func(cfg *config.Config, ops *core.Operations, logger *zap.Logger) error {
		defer logger.Sync()
		if err := cfg.Validate(); err != nil {
			return err
		}

		userID := cmd.String("user")
		if userID == "" {
			userID = cfg.GetTelegram().UserChatID
		}
		res = op(ops, userID)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, describe(res))
	if res.Tier == core.TierFatal {
		return res.Err
	}
	return nil
}

func describe(res *core.OperationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "outcome: %s (%s)", res.Outcome, res.Tier)
	if res.Folder != "" {
		fmt.Fprintf(&b, "\nfolder:  %s", res.Folder)
	}
	if res.Candidate != nil {
		fmt.Fprintf(&b, "\nnewest:  %s", res.Candidate)
	}
	if res.Cursor != nil {
		fmt.Fprintf(&b, "\ncursor:  %s", res.Cursor)
	}
	if res.Outcome == core.OutcomeDelivered {
		fmt.Fprintf(&b, "\nlistings: %d", res.Listings)
	}
	if res.Err != nil && res.Tier != core.TierOK {
		fmt.Fprintf(&b, "\nerror:   %v", res.Err)
	}
	return b.String()
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
