package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kelseyhightower/envconfig"

	"github.com/chungindustries/cpm-registry/internal/client"
	"github.com/chungindustries/cpm-registry/internal/domain/registry"
)

// settings are read from CPM_* environment variables.
type settings struct {
	RegistryURL string        `envconfig:"REGISTRY_URL" default:"https://registry.cpm.chungindustries.com"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

const usage = `Usage: registryctl [-registry URL] <command> [arguments]

Commands:
  list                                      list packages
  get <name> [version]                      show a package or one version
  publish -meta meta.json -tarball pkg.tgz  publish a version
  download [-o file] <name> <version>       download a tarball

Environment:
  CPM_REGISTRY_URL, CPM_TIMEOUT
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var s settings
	if err := envconfig.Process("CPM", &s); err != nil {
		fmt.Fprintf(stderr, "registryctl: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("registryctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	baseURL := fs.String("registry", s.RegistryURL, "Registry base URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.Timeout = s.Timeout
	c := client.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "list":
		err = list(ctx, c, stdout)
	case "get":
		err = get(ctx, c, rest, stdout)
	case "publish":
		err = publish(ctx, c, rest, stdout, stderr)
	case "download":
		err = download(ctx, c, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "registryctl: unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	var usageErr usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "registryctl %s: %v\n", cmd, err)
		return 2
	default:
		fmt.Fprintf(stderr, "registryctl %s: %v\n", cmd, err)
		return 1
	}
}

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

type usageError string

func (e usageError) Error() string { return string(e) }

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func list(ctx context.Context, c *client.Client, stdout io.Writer) error {
	pkgs, err := c.List(ctx)
	if err != nil {
		return err
	}
	for _, pkg := range pkgs {
		fmt.Fprintf(stdout, "%s\t%d version(s)\t%s\n", pkg.Name, len(pkg.Versions), pkg.Author)
	}
	return nil
}

func get(ctx context.Context, c *client.Client, args []string, stdout io.Writer) error {
	switch len(args) {
	case 1:
		pkg, err := c.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, pkg)
	case 2:
		entry, err := c.GetVersion(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(stdout, entry)
	default:
		return usageError("expected <name> [version]")
	}
}

func publish(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	metaPath := fs.String("meta", "", "Path to the version metadata JSON")
	tarballPath := fs.String("tarball", "", "Path to the package tarball")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *metaPath == "" || *tarballPath == "" {
		return usageError("-meta and -tarball are required")
	}

	raw, err := os.ReadFile(*metaPath)
	if err != nil {
		return err
	}
	var meta registry.Metadata
	if err := strictJSON.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("failed to parse %s: %w", *metaPath, err)
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	tarball, err := os.ReadFile(*tarballPath)
	if err != nil {
		return err
	}

	pkg, err := c.Publish(ctx, meta, tarball)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Published %s@%s (%d version(s))\n", meta.Name, meta.Version, len(pkg.Versions))
	return nil
}

func download(ctx context.Context, c *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "", "Output file (default <name>-<version>.tgz, - for stdout)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 2 {
		return usageError("expected <name> <version>")
	}
	name, version := fs.Arg(0), fs.Arg(1)

	if *out == "-" {
		_, err := c.Download(ctx, name, version, stdout)
		return err
	}

	path := *out
	if path == "" {
		path = registry.TarballFilename(name, version)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	n, err := c.Download(ctx, name, version, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s (%d bytes)\n", path, n)
	return nil
}
