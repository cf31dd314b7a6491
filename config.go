package ldapenv

import (
	"os"
	"path/filepath"

	"github.com/giantswarm/ldapenv/internal/core"
)

// builderConfig holds everything a Builder passes to core.Start apart from
// the payloads. It embeds core.Config to keep internal types out of the
// public API without duplicating every field.
type builderConfig struct {
	core.Config

	// schemaDirs and dataDirs are directories of *.ldif files expanded at
	// Run time into layer 0 and layer 1 payloads.
	schemaDirs []string
	dataDirs   []string
}

func defaultBuilderConfig(baseDN, rootDN, rootPassword string) builderConfig {
	return builderConfig{Config: core.Config{
		BaseDN:            baseDN,
		RootDN:            rootDN,
		RootPassword:      rootPassword,
		BindAddr:          DefaultBindAddr,
		SlapdBinary:       DefaultSlapdBinary,
		SlapaddBinary:     DefaultSlapaddBinary,
		BaseDir:           filepath.Join(os.TempDir(), DefaultBaseDirName),
		StartTimeout:      DefaultStartTimeout,
		StopTimeout:       DefaultStopTimeout,
		LoadTimeout:       DefaultLoadTimeout,
		OperationTimeout:  DefaultOperationTimeout,
		ReadyPollInterval: DefaultReadyPollInterval,
		MaxStartRetries:   DefaultMaxStartRetries,
		DebugLevel:        DefaultDebugLevel,
	}}
}
