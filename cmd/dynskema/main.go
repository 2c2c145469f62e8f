package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	j "github.com/goccy/go-json"
	"go.uber.org/multierr"

	"github.com/reoring/dynskema"
	"github.com/reoring/dynskema/declfile"
	"github.com/reoring/dynskema/i18n"
	"github.com/reoring/dynskema/jsonschema"
	"github.com/reoring/dynskema/source"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "build":
		buildCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "schema":
		schemaCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "dynskema CLI\n\nUsage:\n  dynskema build -schema decl.yaml [-values values.json] [-strict] [-indent]\n  dynskema validate -schema decl.yaml [-raw] values.json [more.yaml ...]\n  dynskema schema -schema decl.yaml [-indent]\n\nCommon flags:\n  -lang en|ja  message language\n  -v N         log verbosity (1 traces coercion misses)")
}

type common struct {
	schema    string
	lang      string
	verbosity int
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.schema, "schema", "", "declaration file (YAML or JSON)")
	fs.StringVar(&c.lang, "lang", "en", "message language (en, ja)")
	fs.IntVar(&c.verbosity, "v", 0, "log verbosity")
}

func (c *common) setup() (*dynskema.Builder, logr.Logger) {
	i18n.SetLanguage(c.lang)
	stdr.SetVerbosity(c.verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("dynskema")

	decl, err := declfile.ParseFile(c.schema)
	if err != nil {
		fatalf("%v", err)
	}
	b, err := dynskema.New(decl, dynskema.WithLogger(logger))
	if err != nil {
		fatalf("compile %s: %v", c.schema, err)
	}
	logger.V(1).Info("schema compiled", "path", c.schema, "attributes", b.Schema().Keys())
	return b, logger
}

func buildCmd(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var c common
	c.register(fs)
	var valuesPath string
	var strict, indent bool
	fs.StringVar(&valuesPath, "values", "", "initial values file (YAML or JSON)")
	fs.BoolVar(&strict, "strict", false, "validate the result and fail on the first error")
	fs.BoolVar(&indent, "indent", false, "indent the JSON output")
	_ = fs.Parse(args)
	if c.schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	b, _ := c.setup()

	var values map[string]any
	if valuesPath != "" {
		var err error
		if values, err = readValues(valuesPath); err != nil {
			fatalf("%v", err)
		}
	}
	build := b.Build
	if strict {
		build = b.BuildStrict
	}
	tree, err := build(values, nil)
	if err != nil {
		fatalf("build: %v", err)
	}

	printJSON(tree, indent)
}

func schemaCmd(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var c common
	c.register(fs)
	var indent bool
	fs.BoolVar(&indent, "indent", false, "indent the JSON output")
	_ = fs.Parse(args)
	if c.schema == "" {
		fs.Usage()
		os.Exit(2)
	}
	b, _ := c.setup()
	doc, err := jsonschema.Export(b.Schema())
	if err != nil {
		fatalf("export: %v", err)
	}
	printJSON(doc, indent)
}

func printJSON(v any, indent bool) {
	var out []byte
	var err error
	if indent {
		out, err = j.MarshalIndent(v, "", "  ")
	} else {
		out, err = j.Marshal(v)
	}
	if err != nil {
		fatalf("encode: %v", err)
	}
	fmt.Println(string(out))
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var c common
	c.register(fs)
	var raw bool
	fs.BoolVar(&raw, "raw", false, "validate documents as-is instead of building them first")
	_ = fs.Parse(args)
	if c.schema == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	b, logger := c.setup()

	var errs error
	for _, path := range fs.Args() {
		if err := validateFile(b, path, raw); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		logger.Info("valid", "path", path)
	}
	if errs == nil {
		return
	}
	for _, err := range multierr.Errors(errs) {
		fmt.Fprintln(os.Stderr, err)
		if verrs, ok := dynskema.AsValidationErrors(err); ok {
			for _, ve := range verrs {
				fmt.Fprintf(os.Stderr, "  - [%s] %s (%s)\n", ve.Code, ve.Message, ve.Pointer)
			}
		}
	}
	os.Exit(1)
}

func validateFile(b *dynskema.Builder, path string, raw bool) error {
	values, err := readValues(path)
	if err != nil {
		return err
	}
	if raw {
		if verrs := b.Validate(values); len(verrs) > 0 {
			return verrs
		}
		return nil
	}
	built, err := b.BuildWithMeta(values, nil)
	if err != nil {
		return err
	}
	if verrs := b.Validate(built.Value, dynskema.WithPresence(built.Presence)); len(verrs) > 0 {
		return verrs
	}
	return nil
}

func readValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values, err := source.Decode(data, source.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
