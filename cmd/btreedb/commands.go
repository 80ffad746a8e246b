package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"btreedb/internal/codec"
	"btreedb/internal/config"
	"btreedb/internal/dberrors"
	"btreedb/internal/dblog"
	"btreedb/session"
)

func newRootCommand(state *appState) *cobra.Command {
	var cfgPath string
	var d, nodeCache, pageCache int
	var logMode string

	root := &cobra.Command{
		Use:   "btreedb",
		Short: "paged B-tree index over a paged heap file",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch logMode {
			case "off":
				state.log = dblog.Nop()
			case "dev":
				log, err := dblog.New(true)
				if err != nil {
					return err
				}
				state.log = log
			case "prod":
				log, err := dblog.New(false)
				if err != nil {
					return err
				}
				state.log = log
			default:
				return dberrors.New(dberrors.KindInvalidArgument, "cmd.log",
					errors.Errorf("--log: unknown mode %q (want off, dev, or prod)", logMode))
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a config file")
	root.PersistentFlags().IntVar(&d, "d", 0, "branching factor override")
	root.PersistentFlags().IntVar(&nodeCache, "node-cache", -1, "node cache capacity override")
	root.PersistentFlags().IntVar(&pageCache, "page-cache", -1, "page cache capacity override")
	root.PersistentFlags().StringVar(&logMode, "log", "off", "logger mode: off, dev, or prod")

	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
		if d > 0 {
			cfg.D = d
		}
		if nodeCache >= 0 {
			cfg.NodeCache = nodeCache
		}
		if pageCache >= 0 {
			cfg.PageCache = pageCache
		}
		return cfg, nil
	}

	root.AddCommand(
		createCmd(state, loadCfg),
		loadCmd(state, loadCfg),
		insertCmd(state),
		deleteCmd(state),
		updateCmd(state),
		searchCmd(state),
		printCmd(state),
		addRandomCmd(state),
		flushCmd(state),
		exitCmd(state),
		scriptCmd(state, loadCfg),
	)
	return root
}

func createCmd(state *appState, loadCfg func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "create <base>",
		Short: "overwrite the four files and initialize an empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			s, err := session.Create(args[0], cfg, state.log)
			if err != nil {
				return err
			}
			state.sess = s
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func loadCmd(state *appState, loadCfg func() (config.Config, error)) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "load <base>",
		Short: "open an existing database, optionally rebuilding the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			var s *session.Session
			if rebuild {
				s, err = session.RebuildIndex(args[0], cfg, state.log)
			} else {
				s, err = session.Load(args[0], cfg, state.log)
			}
			if err != nil {
				return err
			}
			state.sess = s
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rescan the heap and rebuild the index from scratch")
	return cmd
}

func requireSession(state *appState) error {
	if state.sess == nil {
		return dberrors.New(dberrors.KindInvalidArgument, "cmd.requireSession", errors.New("no database open"))
	}
	return nil
}

func parseKey(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, dberrors.New(dberrors.KindInvalidArgument, "cmd.parseKey", errors.Wrap(err, s))
	}
	return int32(v), nil
}

func parseFloats(args []string) (pa, pb, paub float64, err error) {
	if len(args) != 3 {
		return 0, 0, 0, dberrors.New(dberrors.KindInvalidArgument, "cmd.parseFloats",
			errors.Errorf("want 3 probability fields, got %d", len(args)))
	}
	vals := make([]float64, 3)
	for i, a := range args {
		v, perr := strconv.ParseFloat(a, 64)
		if perr != nil {
			return 0, 0, 0, dberrors.New(dberrors.KindInvalidArgument, "cmd.parseFloats", errors.Wrap(perr, a))
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func insertCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <pA> <pB> <pAuB>",
		Short: "insert a new record",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			pa, pb, paub, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			if err := state.sess.Insert(key, pa, pb, paub); err != nil {
				if dberrors.Is(err, dberrors.KindAlreadyExists) {
					fmt.Fprintln(cmd.OutOrStdout(), "ALREADY EXISTS")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func deleteCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := state.sess.Delete(key); err != nil {
				if dberrors.Is(err, dberrors.KindNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "NOT FOUND")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func updateCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "update <key> <new_pA> <new_pB> <new_pAuB>",
		Short: "rewrite a record's probability fields",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			pa, pb, paub, err := parseFloats(args[1:])
			if err != nil {
				return err
			}
			if err := state.sess.Update(key, pa, pb, paub); err != nil {
				if dberrors.Is(err, dberrors.KindNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "NOT FOUND")
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func searchCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "search <key>",
		Short: "report the node id holding key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			nodeID, found, err := state.sess.Search(key)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "not found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found in node %d\n", nodeID)
			return nil
		},
	}
}

func printCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "dump all records page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			return state.sess.Print(func(page int32, rec codec.Record) error {
				fmt.Fprintf(cmd.OutOrStdout(), "page=%d key=%d pA=%g pB=%g pAuB=%g\n",
					page, rec.Key, rec.PA, rec.PB, rec.PAUB)
				return nil
			})
		},
	}
}

func addRandomCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "addrandom <n>",
		Short: "insert up to n unique random keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return dberrors.New(dberrors.KindInvalidArgument, "cmd.addrandom",
					errors.Errorf("invalid count %q", args[0]))
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			inserted, err := state.sess.AddRandom(n, rng)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d\n", inserted)
			return nil
		},
	}
}

func flushCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "flush caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(state); err != nil {
				return err
			}
			if err := state.sess.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func exitCmd(state *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "flush then terminate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.sess == nil {
				return nil
			}
			return state.sess.Close()
		},
	}
}

// scriptCmd runs a batch of operation-vocabulary lines from a file, one
// command per line (blank lines and lines starting with # are skipped),
// stopping at the first command that returns an error.
func scriptCmd(state *appState, loadCfg func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "script <path>",
		Short: "run a batch of commands from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return dberrors.New(dberrors.KindIOFailure, "cmd.script", err)
			}
			defer f.Close()

			root := newRootCommand(state)
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				root.SetArgs(strings.Fields(line))
				if err := root.Execute(); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}
