package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cuongbtq/cloudprint/internal/bootstrap"
	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/worker"
	"github.com/spf13/cobra"
)

func newSignCommand() *cobra.Command {
	var account, secret string
	var stime int64

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the request signature for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if account == "" || secret == "" {
				return fmt.Errorf("--account and --secret are required")
			}
			if stime == 0 {
				stime = time.Now().Unix()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stime=%d\nsig=%s\n", stime, dispatch.Signature(account, secret, stime))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Gateway account")
	cmd.Flags().StringVar(&secret, "secret", "", "Gateway secret key")
	cmd.Flags().Int64Var(&stime, "stime", 0, "Unix timestamp to sign (default now)")

	return cmd
}

func newRenderCommand() *cobra.Command {
	var language string
	var asHex bool

	cmd := &cobra.Command{
		Use:   "render <content.json|->",
		Short: "Render content to printer commands without sending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args[0])
			if err != nil {
				return err
			}

			lang, ok := formatter.ParseLanguage(language)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown language %q, rendering in %s\n", language, lang)
			}

			raw := formatter.New(nil).Format(content, lang)
			if asHex {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString([]byte(raw)))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.Quote(raw))
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Content language (zh-TW or zh-CN)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "Print hex instead of a quoted string")

	return cmd
}

func newSendCommand(opts *options) *cobra.Command {
	var storeID, role, printerID string

	cmd := &cobra.Command{
		Use:   "send <content.json|->",
		Short: "Render content and send it to a configured printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			content, err := readContent(cmd, args[0])
			if err != nil {
				return err
			}

			printerType := domain.PrinterType(role)
			if !printerType.Valid() {
				return fmt.Errorf("unknown printer role %q", role)
			}

			registry := printing.NewRegistry(printing.NewProvider(cfg.Printing), opts.logger(cmd))
			sender, ok := registry.Resolve(storeID, printerType, printerID)
			if !ok {
				return fmt.Errorf("no %s printer configured for store %q", role, storeID)
			}

			raw := formatter.New(nil).Format(content, sender.Language())

			sendOpts := []dispatch.SendOption{dispatch.WithCopies(content.Copies)}
			if content.Options != nil {
				sendOpts = append(sendOpts, dispatch.WithEncoding(content.Options.Encoding))
			}

			resp, err := sender.Send(cmd.Context(), raw, sendOpts...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ret=%d msg=%s server_ms=%d\n", resp.Ret, resp.Msg, resp.ServerExecutedTime)
			return nil
		},
	}

	cmd.Flags().StringVarP(&storeID, "store", "s", "", "Store id used to pick the printer")
	cmd.Flags().StringVarP(&role, "role", "r", string(domain.PrinterTypeReceipt), "Printer role")
	cmd.Flags().StringVar(&printerID, "printer", "", "Override the printer serial")

	return cmd
}

func newSweepCommand(opts *options) *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail jobs stuck in processing once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if staleAfter <= 0 {
				staleAfter = cfg.Worker.StaleAfter
			}
			if staleAfter <= 0 {
				return fmt.Errorf("--stale-after is required when worker.stale_after is not configured")
			}

			log := opts.logger(cmd)
			client, store, err := bootstrap.Database(cmd.Context(), &cfg.Database, log)
			if err != nil {
				return err
			}
			defer client.Close()

			w := worker.NewWorker(&worker.Config{Logger: log, Store: store, StaleAfter: staleAfter})
			n, err := w.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "failed %d stale jobs\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Age after which processing jobs are failed (default worker.stale_after)")

	return cmd
}
