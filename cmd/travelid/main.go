package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/travel-identity-client/cmd/flags"
	"github.com/ruteri/travel-identity-client/documents"
	"github.com/ruteri/travel-identity-client/httpserver"
	"github.com/ruteri/travel-identity-client/interfaces"
	"github.com/ruteri/travel-identity-client/session"
)

func main() {
	// Flags read their environment variables while parsing, so .env has to
	// be loaded first.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:  "travelid",
		Usage: "Register and look up travel identities on the TravelIdentity contract",
		Flags: append(append([]cli.Flag{}, flags.LogFlags...), flags.ChainFlags...),
		Commands: []*cli.Command{
			connectCommand,
			registerCommand,
			getUserCommand,
			waitCommand,
			historyCommand,
			hashDocumentCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// failure turns a session error into the generic notice for op. The details
// have already been logged by the session.
func failure(op session.Operation, err error) error {
	notice := session.NoticeFor(op, err)
	return cli.Exit(notice.Message, 1)
}

var connectCommand = &cli.Command{
	Name:  "connect",
	Usage: "Connect the wallet and print the bound account",
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.session.Connect(cCtx.Context); err != nil {
			return failure(session.OpConnect, err)
		}

		fmt.Fprintln(cCtx.App.Writer, session.NoticeFor(session.OpConnect, nil).Message)
		fmt.Fprintln(cCtx.App.Writer, env.session.Address().Hex())
		return nil
	},
}

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Register a travel identity for the connected account",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "user name"},
		&cli.StringFlag{Name: "email", Usage: "contact email"},
		&cli.StringFlag{Name: "hash-id", Usage: "identity document hash"},
		&cli.PathFlag{Name: "document", Usage: "identity document to archive and hash instead of --hash-id"},
	},
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		input := interfaces.RegistrationInput{
			Name:         cCtx.String("name"),
			Email:        cCtx.String("email"),
			DocumentHash: cCtx.String("hash-id"),
		}

		if path := cCtx.Path("document"); path != "" {
			if input.DocumentHash != "" {
				return cli.Exit("--hash-id and --document are mutually exclusive", 1)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				env.log.Error("Failed to read document", "path", path, "err", err)
				return err
			}

			archived, err := documents.Archive(cCtx.Context, env.store, data, env.cfg.Documents.HashAlgorithm)
			if err != nil {
				env.log.Error("Failed to archive document", "path", path, "err", err)
				return err
			}
			env.log.Info("Document archived",
				"contentID", archived.ID.String(),
				"algorithm", string(archived.Algorithm))
			input.DocumentHash = archived.DocumentHash
		}

		if err := env.session.Connect(cCtx.Context); err != nil {
			return failure(session.OpConnect, err)
		}

		reg, err := env.session.Register(cCtx.Context, input)
		if reg != nil {
			fmt.Fprintf(cCtx.App.Writer, "tx: %s (%s)\n", reg.TxHash.Hex(), reg.Outcome)
		}
		if err != nil {
			for field, msg := range session.FieldErrors(err) {
				fmt.Fprintf(cCtx.App.ErrWriter, "%s: %s\n", field, msg)
			}
			return failure(session.OpRegister, err)
		}

		fmt.Fprintln(cCtx.App.Writer, session.NoticeFor(session.OpRegister, nil).Message)
		return nil
	},
}

var getUserCommand = &cli.Command{
	Name:      "get-user",
	Usage:     "Print the identity record of an address, or of the connected account",
	ArgsUsage: "[address]",
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.session.Connect(cCtx.Context); err != nil {
			return failure(session.OpConnect, err)
		}

		var record interfaces.UserRecord
		if cCtx.Args().Present() {
			record, err = env.session.FetchUser(cCtx.Context, cCtx.Args().First())
		} else {
			record, err = env.session.FetchOwnUser(cCtx.Context)
		}
		if err != nil {
			return failure(session.OpFetch, err)
		}

		verified := "No"
		if record.IsVerified {
			verified = "Yes"
		}
		fmt.Fprintf(cCtx.App.Writer, "Name: %s\nEmail: %s\nVerified: %s\n", record.Name, record.Email, verified)
		return nil
	},
}

var waitCommand = &cli.Command{
	Name:      "wait",
	Usage:     "Wait again for a registration that was not confirmed in time",
	ArgsUsage: "<txhash>",
	Action: func(cCtx *cli.Context) error {
		arg := cCtx.Args().First()
		if len(arg) != 66 {
			return cli.Exit("expected a 0x-prefixed transaction hash", 1)
		}

		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		reg, err := env.session.Resume(cCtx.Context, common.HexToHash(arg))
		if reg != nil {
			fmt.Fprintf(cCtx.App.Writer, "tx: %s (%s)\n", reg.TxHash.Hex(), reg.Outcome)
		}
		if err != nil {
			return failure(session.OpRegister, err)
		}

		fmt.Fprintln(cCtx.App.Writer, session.NoticeFor(session.OpRegister, nil).Message)
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List registrations recorded in the journal",
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.journal == nil {
			return cli.Exit("no journal configured", 1)
		}

		entries, err := env.journal.List()
		if err != nil {
			env.log.Error("Failed to list journal", "err", err)
			return err
		}

		table := tablewriter.NewWriter(cCtx.App.Writer)
		table.SetHeader([]string{"Submitted", "Tx", "Account", "Name", "Status", "Block"})
		for _, e := range entries {
			block := ""
			if e.BlockNumber != 0 {
				block = strconv.FormatUint(e.BlockNumber, 10)
			}
			table.Append([]string{
				e.SubmittedAt.Format("2006-01-02 15:04:05"),
				e.TxHash.Hex(),
				e.Account.Hex(),
				e.Name,
				string(e.Status),
				block,
			})
		}
		table.Render()
		return nil
	},
}

var hashDocumentCommand = &cli.Command{
	Name:      "hash-document",
	Usage:     "Print the registration hash of a document without submitting anything",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "algo", Value: string(documents.DefaultAlgorithm), Usage: "sha256, keccak256 or sha3-256"},
	},
	Action: func(cCtx *cli.Context) error {
		if !cCtx.Args().Present() {
			return cli.Exit("missing document path", 1)
		}

		algo, err := documents.ParseAlgorithm(cCtx.String("algo"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		data, err := os.ReadFile(cCtx.Args().First())
		if err != nil {
			return err
		}

		hash, err := documents.HashDocument(data, algo)
		if err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, hash)
		return nil
	},
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the registration form and JSON API",
	Flags: flags.ServerFlags,
	Action: func(cCtx *cli.Context) error {
		env, err := setup(cCtx)
		if err != nil {
			return err
		}
		defer env.Close()

		handler, err := httpserver.NewHandler(env.session, env.store, env.cfg.Documents.HashAlgorithm, env.log)
		if err != nil {
			env.log.Error("Failed to create handler", "err", err)
			return err
		}

		server, err := httpserver.New(flags.ConfigureServer(env.log, env.cfg.Server), handler)
		if err != nil {
			env.log.Error("Failed to create server", "err", err)
			return err
		}

		// A wallet that is not reachable yet is retried by the form on load.
		if err := env.session.Connect(cCtx.Context); err != nil {
			env.log.Warn("Wallet not connected at startup", "err", err)
		}

		server.RunInBackground()

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit

		env.log.Info("Shutdown signal received")
		server.Shutdown()
		return nil
	},
}
