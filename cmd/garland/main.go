// Garland CLI - defines decorated classes from a project manifest.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/garland-lang/garland/engine"
	"github.com/garland-lang/garland/manifest"
	"github.com/garland-lang/garland/resolver"
	"github.com/garland-lang/garland/server"
	"github.com/garland-lang/garland/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("garland")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	dump := flag.String("dump", "", "Print the digest of a class after defining")
	serveMode := flag.Bool("serve", false, "Start the inspection/definition server")
	servePort := flag.Int("port", 4567, "Server port (used with --serve)")
	storePath := flag.String("store", "", "Digest store path (overrides the manifest)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: garland [options] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the garland.toml manifest at dir (default .), defines every declared\n")
		fmt.Fprintf(os.Stderr, "class through the decoration pipeline, and reports the committed digests.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  garland ./proj                 # Define all declared classes\n")
		fmt.Fprintf(os.Stderr, "  garland -dump demo::Widget     # Define, then print one digest\n")
		fmt.Fprintf(os.Stderr, "  garland --serve --port 8080    # Define, then serve inspection RPC\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fail("loading manifest: %v", err)
	}
	if m == nil {
		fail("no garland.toml found at or above %s", dir)
	}

	classes := engine.NewClassTable()
	digests := engine.NewDigestStore()
	rctx, err := resolver.NewContext(builtins(), resolver.NewRegistry(m.Project.Namespace))
	if err != nil {
		fail("%v", err)
	}

	var persist *store.Store
	path := *storePath
	if path == "" {
		path = m.Store.Path
	}
	if path != "" {
		persist, err = store.Open(path)
		if err != nil {
			fail("%v", err)
		}
		defer persist.Close()
	}

	decls, err := m.LoadDeclarations()
	if err != nil {
		fail("loading declarations: %v", err)
	}

	for i := range decls {
		def, err := decls[i].Build(rctx, classes)
		if err != nil {
			fail("%v", err)
		}
		cls, err := engine.Define(def, rctx)
		if err != nil {
			fail("defining %s: %v", decls[i].Name, err)
		}
		if _, err := classes.Register(cls); err != nil {
			fail("%v", err)
		}
		digest := engine.DigestClass(cls)
		digests.Put(digest)
		if *verbose {
			fmt.Printf("defined %s (%s)\n", cls.FullName(), hex.EncodeToString(digest.Hash[:8]))
		}
		if persist != nil {
			static := engine.MetadataWire(cls.FullName(), "static", cls.StaticMetadata())
			instance := engine.MetadataWire(cls.FullName(), "instance", cls.InstanceMetadata())
			if err := persist.SaveClass(digest, static, instance); err != nil {
				fail("%v", err)
			}
		}
	}
	if *verbose {
		fmt.Printf("defined %d classes\n", digests.Len())
	}

	if *dump != "" {
		d, ok := digests.GetByName(*dump)
		if !ok {
			fail("no class named %q was defined", *dump)
		}
		printDigest(d)
	}

	if *serveMode {
		var opts []server.ServerOption
		if persist != nil {
			opts = append(opts, server.WithStore(persist))
		}
		srv, err := server.New(classes, digests, rctx, opts...)
		if err != nil {
			fail("%v", err)
		}
		if err := srv.ListenAndServe(*servePort); err != nil {
			fail("server: %v", err)
		}
	}
}

// printDigest writes a digest as indented JSON with a hex hash.
func printDigest(d *engine.ClassDigest) {
	view := struct {
		*engine.ClassDigest
		Hash string `json:"hash"`
	}{d, hex.EncodeToString(d.Hash[:])}
	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		fail("encoding digest: %v", err)
	}
	fmt.Println(string(out))
}

// builtins returns the default decorator namespace available to every
// project: small client transformers useful from declaration files.
func builtins() *resolver.Registry {
	reg := resolver.NewRegistry("")

	// traced logs every invocation of the decorated method.
	_ = reg.RegisterTransformer("traced", func(p engine.Payload, ctx *engine.Context) (*engine.Payload, error) {
		name := ctx.Name
		inner := p.Method
		return &engine.Payload{Method: func(recv engine.Value, args ...engine.Value) engine.Value {
			log.Infof("call %s (%d args)", name, len(args))
			return inner(recv, args...)
		}}, nil
	})

	// counted tracks constructions of the decorated class in its metadata.
	_ = reg.RegisterTransformer("counted", func(p engine.Payload, ctx *engine.Context) (*engine.Payload, error) {
		ctx.DefineMetadata("counted", true)
		ctx.AddInitializer(func(recv engine.Value) {
			log.Debugf("constructed %v", recv)
		})
		return nil, nil
	})

	return reg
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
