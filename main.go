package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/larkmail/lark/auth"
	"github.com/larkmail/lark/client"
	"github.com/larkmail/lark/config"
	"github.com/larkmail/lark/crypto"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/server"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Functions

// initAuthenticator of the correct implementation specified
// in the config to be used by the authority.
func initAuthenticator(conf *config.Config) (auth.PlainAuthenticator, error) {

	switch conf.Server.AuthAdapter {
	case "AuthFile":
		// Open authentication file and read user information.
		return auth.NewFileAuthenticator(
			conf.Server.AuthFile.File,
			conf.Server.AuthFile.Separator,
		)
	default: // AcceptAll
		return auth.NewAcceptAll(), nil
	}
}

// initTLSConfig loads the certificate pair named in the
// config or, with no paths configured, falls back to a
// freshly generated self-signed certificate.
func initTLSConfig(conf *config.Config) (*tls.Config, error) {

	if conf.Server.TLS.CertLoc != "" {
		return crypto.NewPublicTLSConfig(conf.Server.TLS.CertLoc, conf.Server.TLS.KeyLoc)
	}

	cert, err := crypto.GenerateSelfSigned("127.0.0.1", "localhost")
	if err != nil {
		return nil, errors.Wrap(err, "generating self-signed certificate failed")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// runServer brings up the authority with the configured
// authentication adapter, TLS material and an empty
// standard mailbox, plus the prometheus endpoint if one
// was configured.
func runServer(logger log.Logger, conf *config.Config) error {

	authenticator, err := initAuthenticator(conf)
	if err != nil {
		return errors.Wrap(err, "failed to initialize an authenticator")
	}

	tlsConfig, err := initTLSConfig(conf)
	if err != nil {
		return errors.Wrap(err, "failed to initialize TLS config")
	}

	srv, err := server.InitServer(
		logger,
		NewServerMetrics(conf.Server.PrometheusAddr),
		conf.Server.ListenAddr,
		conf.Greeting,
		tlsConfig,
		authenticator,
		mailbox.NewStandardMailbox(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to initialize server")
	}
	defer srv.Socket.Close()

	var g errgroup.Group

	g.Go(func() error {
		return srv.Run()
	})

	g.Go(func() error {
		runPromHTTP(logger, conf.Server.PrometheusAddr)
		return nil
	})

	return g.Wait()
}

// runClient executes one initiator subcommand against the
// authority named in the config and prints the outcome to
// stdout.
func runClient(logger log.Logger, conf *config.Config, args []string) error {

	if len(args) < 1 {
		return errors.New("missing client subcommand, see -help")
	}

	// Values from environment override the config file.
	config.LoadEnv(conf)

	cmd := args[0]
	args = args[1:]

	// Subcommands only reading mailbox state run on the
	// read-only handle.
	switch cmd {

	case "folders":

		c, err := client.Connect(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		folders, err := c.Folders()
		if err != nil {
			return err
		}

		for _, folder := range folders {
			fmt.Println(folder)
		}

		return nil

	case "list":

		c, err := client.Connect(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if err := selectArg(c, args); err != nil {
			return err
		}

		msgs, err := c.FetchAll()
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			fmt.Printf("%d\t%s\t%s\t%s\n", msg.UID, msg.Date.Format("2006-01-02"), msg.From, msg.Subject)
		}

		return nil

	case "show":

		if len(args) < 2 {
			return errors.New("usage: show <folder> <uid>")
		}

		uid, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid UID")
		}

		c, err := client.Connect(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(args[0]); err != nil {
			return err
		}

		msg, err := c.FetchUID(uint32(uid))
		if err != nil {
			return err
		}

		if msg == nil {
			return errors.Errorf("no message with UID %d", uid)
		}

		fmt.Printf("From: %s\nTo: %s\nDate: %s\nSubject: %s\n\n%s", msg.From, msg.To, msg.Date.Format("2006-01-02 15:04"), msg.Subject, msg.Body)

		return nil

	case "search":

		if len(args) < 2 {
			return errors.New("usage: search <folder> <criteria...>")
		}

		c, err := client.Connect(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(args[0]); err != nil {
			return err
		}

		uids, err := c.SearchUIDs(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		for _, uid := range uids {
			fmt.Println(uid)
		}

		return nil

	case "mark-read":

		uids, folder, err := uidArgs(args, "mark-read")
		if err != nil {
			return err
		}

		c, err := client.ConnectReadWrite(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(folder); err != nil {
			return err
		}

		return c.MarkRead(uids)

	case "move":

		if len(args) < 3 {
			return errors.New("usage: move <folder> <dest> <uid...>")
		}

		uids, err := parseUIDs(args[2:])
		if err != nil {
			return err
		}

		c, err := client.ConnectReadWrite(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(args[0]); err != nil {
			return err
		}

		return c.MoveToFolder(uids, args[1])

	case "archive":

		uids, folder, err := uidArgs(args, "archive")
		if err != nil {
			return err
		}

		c, err := client.ConnectReadWrite(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(folder); err != nil {
			return err
		}

		return c.Archive(uids)

	case "unmark-all-read":

		if len(args) < 1 {
			return errors.New("usage: unmark-all-read <folder>")
		}

		c, err := client.ConnectReadWrite(logger, &conf.Client)
		if err != nil {
			return err
		}
		defer c.Logout()

		if _, err := c.Select(args[0]); err != nil {
			return err
		}

		return c.UnmarkAllRead()

	default:
		return errors.Errorf("unknown client subcommand '%s'", cmd)
	}
}

// selectArg selects the folder named as first argument, or
// INBOX with no argument supplied.
func selectArg(c *client.Client, args []string) error {

	folder := "INBOX"
	if len(args) > 0 {
		folder = args[0]
	}

	_, err := c.Select(folder)
	return err
}

// uidArgs splits "<folder> <uid...>" argument lists.
func uidArgs(args []string, usage string) ([]uint32, string, error) {

	if len(args) < 2 {
		return nil, "", errors.Errorf("usage: %s <folder> <uid...>", usage)
	}

	uids, err := parseUIDs(args[1:])
	if err != nil {
		return nil, "", err
	}

	return uids, args[0], nil
}

func parseUIDs(args []string) ([]uint32, error) {

	uids := make([]uint32, 0, len(args))

	for _, arg := range args {

		uid, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid UID '%s'", arg)
		}

		uids = append(uids, uint32(uid))
	}

	return uids, nil
}

func main() {

	// Set CPUs usable by lark to all available.
	runtime.GOMAXPROCS(runtime.NumCPU())

	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	serverFlag := flag.Bool("server", false, "Append this flag to run this process as the mailbox authority.")
	clientFlag := flag.Bool("client", false, "Append this flag to run this process as an initiator, followed by a subcommand: folders, list, show, search, mark-read, move, archive, unmark-all-read.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	switch {

	case *serverFlag:

		if err := runServer(logger, conf); err != nil {
			level.Error(logger).Log(
				"msg", "authority failed",
				"err", err,
			)
			os.Exit(1)
		}

	case *clientFlag:

		if err := runClient(logger, conf, flag.Args()); err != nil {
			level.Error(logger).Log(
				"msg", "client command failed",
				"err", err,
			)
			os.Exit(1)
		}

	default:
		// If no flags were specified, print usage
		// and return with failure value.
		flag.Usage()
		os.Exit(1)
	}
}
