package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/absfs/filevault"
	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var (
	storePath   string
	backend     string
	configPath  string
	passwordEnv string
	verbose     bool
	debug       bool

	log   *logrus.Logger
	stdin *bufio.Reader

	rootCmd = &cobra.Command{
		Use:   "filevault",
		Short: "Encrypt files with a password before they reach storage",
		Long: `filevault seals files with a password-derived key into a local blob store
and opens them again. Wrong passwords and tampered blobs are reported the same way.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = newLogger(cmd.ErrOrStderr(), verbose, debug)
			stdin = bufio.NewReader(cmd.InOrStdin())
			log.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.Name(), verbose, debug)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "blob store location (default .filevault)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "blob store backend: fs or badger (default fs)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&passwordEnv, "password-env", "", "read the password from this environment variable")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// resetGlobalState resets all flag variables to their defaults for testing
func resetGlobalState() {
	storePath = ""
	backend = ""
	configPath = ""
	passwordEnv = ""
	verbose = false
	debug = false
	encryptName = ""
	resetDecryptCommandState()
	resetRekeyCommandState()
	resetExportCommandState()
	resetCobraFlagState(rootCmd)
}

// resetCobraFlagState clears the Changed mark on every flag so one test's
// arguments do not leak into the next
func resetCobraFlagState(cmd *cobra.Command) {
	reset := func(flag *pflag.Flag) {
		flag.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetCobraFlagState(sub)
	}
}

func newLogger(out io.Writer, verbose, debug bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case debug:
		l.SetLevel(logrus.DebugLevel)
	case verbose:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}

// openVault builds the engine and store from settings and flags. The
// returned function releases the store.
func openVault() (*filevault.Vault, func(), error) {
	settings := &filevault.Settings{}
	if configPath != "" {
		loaded, err := filevault.LoadSettingsFile(configPath)
		if err != nil {
			return nil, nil, err
		}
		settings = loaded
		log.Debugf("Loaded settings from %s", configPath)
	}

	cfg, err := settings.EngineConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.Logger = log

	engine, err := filevault.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	kind := firstNonEmpty(backend, settings.Store.Backend, filevault.BackendFS)
	path := firstNonEmpty(storePath, settings.Store.Path, ".filevault")
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("Using %s store at %s", kind, path)

	var store filevault.BlobStore
	release := func() {}
	switch kind {
	case filevault.BackendFS:
		fsStore, err := filevault.NewFSStore(&dirFS{root: path}, "/")
		if err != nil {
			return nil, nil, err
		}
		store = fsStore
	case filevault.BackendBadger:
		badgerStore, err := filevault.OpenBadgerStore(path)
		if err != nil {
			return nil, nil, err
		}
		store = badgerStore
		release = func() {
			if err := badgerStore.Close(); err != nil {
				log.Warnf("Failed to close store: %v", err)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", kind)
	}

	vault, err := filevault.NewVault(engine, store)
	if err != nil {
		release()
		return nil, nil, err
	}
	return vault, release, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// readPassword returns the password from the named environment variable,
// else prompts on the terminal, else reads one line from stdin
func readPassword(cmd *cobra.Command, envVar, prompt string) ([]byte, error) {
	if envVar != "" {
		value, ok := os.LookupEnv(envVar)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", envVar)
		}
		log.Debugf("Read password from $%s", envVar)
		return []byte(value), nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return password, nil
	}

	line, err := stdin.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, fmt.Errorf("failed to read password from stdin: %w", err)
	}
	line = trimNewline(line)
	log.Debugf("Read password from stdin")
	return line, nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// startSpinner shows a spinner on an interactive stdout while the KDF runs.
// The returned function stops it.
func startSpinner(cmd *cobra.Command, message string) func() {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) || verbose || debug {
		log.Infof("%s", message)
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + message
	if err := s.Color("cyan"); err != nil {
		log.Warnf("Failed to set spinner color: %v", err)
	}
	s.Start()
	return s.Stop
}

// exitCode maps error kinds to process exit codes
func exitCode(err error) int {
	switch {
	case filevault.IsAuthenticationError(err):
		return 3
	case filevault.IsIntegrityError(err):
		return 4
	case filevault.IsValidationError(err):
		return 2
	default:
		return 1
	}
}
