package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/config"
)

// commonFlags holds the settings-affecting flags shared by install,
// repair, and (partially) uninstall, bound with cmd.Flags().*Var the
// way the teacher binds clusterDeploy* package vars in cmd/mup.
type commonFlags struct {
	modifyProfile      bool
	nixBuildGroupName  string
	nixBuildGroupID    uint32
	nixBuildUserPrefix string
	nixBuildUserIDBase uint32
	nixBuildUserCount  uint32
	sslCertFile        string
	extraConf          []string
	force              bool
	skipNixConf        bool
	addChannel         bool
	init               string
	noConfirm          bool
	startDaemon        bool
	receiptPath        string
	logFormat          string
	settingsFile       string
	verbosity          int

	archiveURL    string
	archiveDigest string
	archiveVersion string
}

func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	d := config.Default()
	cmd.Flags().BoolVar(&f.modifyProfile, "modify-profile", d.ModifyProfile, "modify the default shell profiles to source Nix")
	cmd.Flags().StringVar(&f.nixBuildGroupName, "nix-build-group-name", d.NixBuildGroupName, "name of the Nix build group")
	cmd.Flags().Uint32Var(&f.nixBuildGroupID, "nix-build-group-id", d.NixBuildGroupID, "GID of the Nix build group")
	cmd.Flags().StringVar(&f.nixBuildUserPrefix, "nix-build-user-prefix", d.NixBuildUserPrefix, "prefix for build user names")
	cmd.Flags().Uint32Var(&f.nixBuildUserIDBase, "nix-build-user-id-base", d.NixBuildUserIDBase, "first UID allocated to a build user")
	cmd.Flags().Uint32Var(&f.nixBuildUserCount, "nix-build-user-count", d.NixBuildUserCount, "number of build users to provision")
	cmd.Flags().StringVar(&f.sslCertFile, "ssl-cert-file", d.SSLCertFile, "path to a custom SSL certificate for the daemon")
	cmd.Flags().StringSliceVar(&f.extraConf, "extra-conf", nil, "extra nix.conf lines, one per flag occurrence")
	cmd.Flags().BoolVar(&f.force, "force", d.Force, "override plan conflicts and cure conflicts")
	cmd.Flags().BoolVar(&f.skipNixConf, "skip-nix-conf", d.SkipNixConf, "do not write /etc/nix/nix.conf")
	cmd.Flags().BoolVar(&f.addChannel, "add-channel", d.AddChannel, "add the default nixpkgs channel")
	cmd.Flags().StringVar(&f.init, "init", string(d.Init), "init system to register the daemon with: none|systemd|launchd|supervisor")
	cmd.Flags().BoolVar(&f.noConfirm, "no-confirm", d.NoConfirm, "skip the interactive plan confirmation prompt")
	cmd.Flags().BoolVar(&f.startDaemon, "start-daemon", d.StartDaemon, "start the daemon after install")
	cmd.Flags().StringVar(&f.receiptPath, "receipt-path", d.ReceiptPath, "path to read/write the install receipt")
	cmd.Flags().StringVar(&f.logFormat, "log-format", d.LogFormat, "log rendering: compact|full|pretty|json")
	cmd.Flags().StringVar(&f.settingsFile, "settings-file", "", "optional YAML settings file, lowest precedence")
	cmd.Flags().CountVarP(&f.verbosity, "verbose", "v", "increase log verbosity (-v, -vv)")

	cmd.Flags().StringVar(&f.archiveURL, "archive-url", "", "URL to fetch the target archive from (mutually exclusive with an embedded build)")
	cmd.Flags().StringVar(&f.archiveDigest, "archive-digest", "", "expected sha256 digest of the target archive")
	cmd.Flags().StringVar(&f.archiveVersion, "archive-version", "", "target version string, e.g. 2.24.0")
}

// resolveSettings layers config.Default() < settings file < ApplyEnv()
// < explicit flags, matching config.Settings' documented precedence
// (env overrides the built-in default, but cobra's own flag values,
// applied last here, take final precedence).
func (f *commonFlags) resolveSettings(cmd *cobra.Command) (config.Settings, error) {
	s := config.Default()
	if f.settingsFile != "" {
		fromFile, err := config.LoadFile(f.settingsFile)
		if err != nil {
			return s, err
		}
		s = fromFile
	}
	if err := s.ApplyEnv(); err != nil {
		return s, fmt.Errorf("applying environment overrides: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("modify-profile") {
		s.ModifyProfile = f.modifyProfile
	}
	if flags.Changed("nix-build-group-name") {
		s.NixBuildGroupName = f.nixBuildGroupName
	}
	if flags.Changed("nix-build-group-id") {
		s.NixBuildGroupID = f.nixBuildGroupID
	}
	if flags.Changed("nix-build-user-prefix") {
		s.NixBuildUserPrefix = f.nixBuildUserPrefix
	}
	if flags.Changed("nix-build-user-id-base") {
		s.NixBuildUserIDBase = f.nixBuildUserIDBase
	}
	if flags.Changed("nix-build-user-count") {
		s.NixBuildUserCount = f.nixBuildUserCount
	}
	if flags.Changed("ssl-cert-file") {
		s.SSLCertFile = f.sslCertFile
	}
	if flags.Changed("extra-conf") {
		s.ExtraConf = f.extraConf
	}
	if flags.Changed("force") {
		s.Force = f.force
	}
	if flags.Changed("skip-nix-conf") {
		s.SkipNixConf = f.skipNixConf
	}
	if flags.Changed("add-channel") {
		s.AddChannel = f.addChannel
	}
	if flags.Changed("init") {
		s.Init = config.InitSystem(f.init)
	}
	if flags.Changed("no-confirm") {
		s.NoConfirm = f.noConfirm
	}
	if flags.Changed("start-daemon") {
		s.StartDaemon = f.startDaemon
	}
	if flags.Changed("receipt-path") {
		s.ReceiptPath = f.receiptPath
	}
	if flags.Changed("log-format") {
		s.LogFormat = f.logFormat
	}
	s.Verbosity = f.verbosity

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

