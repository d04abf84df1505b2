package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"imbridge/internal/config"
	"imbridge/internal/hotkey"
	"imbridge/internal/keymap"
	"imbridge/internal/keysym"
	"imbridge/internal/modifier"
)

func newCheckCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [profile]",
		Short: "Validate a hotkey profile file",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Hotkeys.ProfilePath
			if len(args) == 1 {
				path = args[0]
			}
			if !cmd.Flags().Changed("strict") {
				strict = a.cfg.Hotkeys.Strict
			}

			out := cmd.OutOrStdout()
			p, errs, err := loadProfile(path, strict, a.cfg.IgnoredMask())
			for _, le := range errs {
				fmt.Fprintln(out, le)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d hotkeys for %d events\n", path, p.Len(), len(p.Events()))
			if len(errs) > 0 {
				return fmt.Errorf("%d bad lines", len(errs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first bad line")
	return cmd
}

func newLookupCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "lookup <chord>...",
		Short: "Resolve chords against a profile",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.cfg.Hotkeys.ProfilePath
			}
			p, _, err := loadProfile(path, false, a.cfg.IgnoredMask())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bad := 0
			for _, arg := range args {
				c, err := hotkey.ParseChord(arg)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", arg, err)
					bad++
					continue
				}
				if ev, ok := p.Lookup(c.Keyval, c.Mask); ok {
					fmt.Fprintf(out, "%s -> %s\n", c, ev)
				} else {
					fmt.Fprintf(out, "%s: no hotkey\n", c)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d chords did not parse", bad)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "profile", "p", "", "profile file (default from config)")
	return cmd
}

func newKeymapCmd(a *app) *cobra.Command {
	var group int
	cmd := &cobra.Command{
		Use:   "keymap <file> <keycode> [modifiers]",
		Short: "Classify a keycode, e.g. keymap us.keymap 38 Shift+Mod5",
		Args:  usageArgs(cobra.RangeArgs(2, 3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("group") {
				group = a.cfg.Keymap.Group
			}
			code, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("keycode %q: %w", args[1], err)
			}
			var mods keysym.State
			if len(args) == 3 {
				for _, name := range strings.Split(args[2], "+") {
					bit, ok := modifier.MaskFromName(strings.TrimSpace(name))
					if !ok {
						return fmt.Errorf("unknown modifier %q", name)
					}
					mods |= bit
				}
			}

			km, errs, err := keymap.LoadFile(args[0])
			if err != nil {
				return err
			}
			for _, le := range errs {
				a.logger.Warn("keymap line skipped", "file", le.File, "line", le.Line, "error", le.Msg)
			}

			k, ok := km.Classify(uint32(code), group, mods)
			if !ok {
				return fmt.Errorf("keycode %d is not mapped", code)
			}
			out := cmd.OutOrStdout()
			if r := keysym.ToRune(k); r != 0 {
				fmt.Fprintf(out, "%s (U+%04X)\n", keysym.Name(k), r)
			} else {
				fmt.Fprintln(out, keysym.Name(k))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&group, "group", "g", 0, "layout group (default from config)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var db, name string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a profile file or JSON export",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, errs, err := loadProfile(args[0], true, a.cfg.IgnoredMask())
			if err != nil {
				return err
			}
			for _, le := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), le)
			}
			if name != "" && name != p.Name() {
				if p, err = rename(p, name); err != nil {
					return err
				}
			}

			s, err := a.openStore(db)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SaveProfile(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q: %d hotkeys\n", p.Name(), p.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "profile database (default from config)")
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the file's")
	return cmd
}

func rename(p *hotkey.Profile, name string) (*hotkey.Profile, error) {
	out := hotkey.NewProfile(name, hotkey.WithIgnoredMask(p.IgnoredMask()))
	for _, e := range p.Entries() {
		if err := out.Add(e.Keyval, e.Mask, e.Event); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func newExportCmd(a *app) *cobra.Command {
	var db string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "export <name> [file]",
		Short: "Write a stored profile to stdout or a file",
		Args:  usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(db)
			if err != nil {
				return err
			}
			defer s.Close()
			p, err := s.LoadProfile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if asJSON {
					return hotkey.EncodeJSON(out, p)
				}
				return hotkey.Write(out, p)
			}

			if err := exportFile(args[1], p); err != nil {
				return err
			}
			fmt.Fprintf(out, "exported %q to %s\n", p.Name(), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "profile database (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON to stdout instead of profile syntax")
	return cmd
}

// exportFile writes JSON for .json paths and profile syntax otherwise.
func exportFile(path string, p *hotkey.Profile) error {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return hotkey.SaveFile(path, p)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := hotkey.EncodeJSON(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newListCmd(a *app) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(db)
			if err != nil {
				return err
			}
			defer s.Close()
			infos, err := s.ListProfiles()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No stored profiles")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%-20s %4d hotkeys  updated %s\n",
					info.Name, info.Hotkeys, info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "profile database (default from config)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored profile",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(db)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "profile database (default from config)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	var format string
	var schema bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration or its JSON schema",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if schema {
				return writeConfigSchema(out)
			}
			switch format {
			case "toml", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err := a.cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			data, err := config.Encode(a.cfg, "."+format)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "output format: toml, json or yaml")
	cmd.Flags().BoolVar(&schema, "schema", false, "print the JSON schema of the config file instead")
	return cmd
}

func writeConfigSchema(w io.Writer) error {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&config.Config{})
	s.Title = "imbridge configuration"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
