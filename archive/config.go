package archive

import (
	"log/slog"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/internal/options"
)

// Config is the value-typed parse/extraction configuration, spec.md §5.
type Config struct {
	codepage        ebcdic.Codepage
	lreclDefault    int
	unnum           bool
	forceText       bool
	binaryOnly      bool
	outputDir       string
	overwrite       bool
	applyModifyTime bool
	logger          *slog.Logger

	datasetNameOverride string
	inputFilename       string
}

func defaultConfig() *Config {
	return &Config{
		codepage:     ebcdic.CP1140,
		lreclDefault: 80,
		outputDir:    ".",
		logger:       slog.New(slog.DiscardHandler),
	}
}

// Option configures an Archive parse, spec.md §5.
type Option = options.Option[*Config]

// WithCodepage selects the EBCDIC codepage used for every text decode,
// default cp1140.
func WithCodepage(codec ebcdic.Codepage) Option {
	return options.NoError(func(c *Config) {
		c.codepage = codec
	})
}

// WithLRECLDefault sets the manual record length used in place of LRECL
// when a member's RECFM is undefined or unrecognized, spec.md §4.6. Default
// 80.
func WithLRECLDefault(n int) Option {
	return options.New(func(c *Config) error {
		if n < 1 {
			return errInvalidOption("lrecl default must be positive")
		}
		c.lreclDefault = n

		return nil
	})
}

// WithUnnum enables stripping a trailing 8-character sequence-number field
// from fixed-format text, spec.md §4.6.
func WithUnnum(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.unnum = enabled
	})
}

// WithForceText forces every member to be treated as textual regardless of
// the content classifier's verdict, spec.md §4.7.
func WithForceText(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.forceText = enabled
	})
}

// WithBinaryOnly skips text synthesis entirely, keeping only raw bytes.
func WithBinaryOnly(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.binaryOnly = enabled
	})
}

// WithOutputDir sets the directory an extraction collaborator writes to.
// The core parser never touches the filesystem; this is carried in Config
// purely for extraction-path collaborators to read back.
func WithOutputDir(dir string) Option {
	return options.NoError(func(c *Config) {
		c.outputDir = dir
	})
}

// WithOverwrite allows an extraction collaborator to replace existing
// output files.
func WithOverwrite(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.overwrite = enabled
	})
}

// WithApplyModifyTime tells an extraction collaborator to set each
// extracted file's mtime from the member's ISPF modify date, when present.
func WithApplyModifyTime(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.applyModifyTime = enabled
	})
}

// WithDatasetNameOverride supplies an explicit dataset name to use in place
// of the XMI dataset-naming fallback, spec.md §4.2 and §9 Design Note (a).
// It takes precedence over WithInputFilename's derived stem, and over both,
// INMDSNAM always wins when the stream actually carries one.
func WithDatasetNameOverride(name string) Option {
	return options.NoError(func(c *Config) {
		c.datasetNameOverride = name
	})
}

// WithInputFilename records the path the input bytes were read from, so the
// XMI dataset-naming fallback can use the file's stem, uppercased, when
// INMR02 carries no INMDSNAM and no WithDatasetNameOverride was given,
// spec.md §4.2.
func WithInputFilename(path string) Option {
	return options.NoError(func(c *Config) {
		c.inputFilename = path
	})
}

// WithLogger sets the structured logger used for parse warnings. Default
// discards all output.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

type optionError string

func (e optionError) Error() string { return string(e) }

func errInvalidOption(msg string) error { return optionError(msg) }
