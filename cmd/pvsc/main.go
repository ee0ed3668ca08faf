// pvsc compiles level descriptions into BSP trees with potentially
// visible sets and inspects the resulting .pvs files.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/midgard-pvs/internal/config"
	"github.com/Faultbox/midgard-pvs/internal/debug"
	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/formats"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "build", "b":
		cmdBuild(args)
	case "info":
		cmdInfo(args)
	case "query", "q":
		cmdQuery(args)
	case "render":
		cmdRender(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pvsc - BSP and PVS compiler

Usage:
  pvsc <command> [options]

Commands:
  build [options] <level.yaml>          Compile a level to a .pvs file
  info <file.pvs>                       Show tree statistics and validate
  query [-r radius] <file.pvs> <from> [to]
                                        Locate a point, test visibility of another
  render [options] <file.pvs> <out.png> Draw a top-down view
  config [-o path]                      Write the default configuration

Points are given as x,y,z.

Examples:
  pvsc build -o maps/e1m1.pvs levels/e1m1.yaml
  pvsc build -allow-leaks -png e1m1.png levels/e1m1.yaml
  pvsc info maps/e1m1.pvs
  pvsc query maps/e1m1.pvs 64,64,32 512,96,32
  pvsc render -from 64,64,32 maps/e1m1.pvs e1m1.png`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pvsc info <file.pvs>")
		os.Exit(1)
	}

	tree, err := formats.ParsePVSFile(args[0])
	if err != nil {
		fail(err)
	}

	version := formats.Version{Major: formats.PVSVersionMajor, Minor: formats.PVSVersionMinor}
	fmt.Printf("File:    %s (format %s)\n", args[0], version)
	printTree(tree)

	if err := tree.Validate(); err != nil {
		fmt.Printf("Status:  INVALID\n%v\n", err)
		os.Exit(1)
	}
	fmt.Println("Status:  ok")
}

func printTree(tree *bsp.Tree) {
	s := tree.Stats()
	size := tree.Bounds.Size()
	fmt.Printf("ID:      %s\n", tree.ID)
	fmt.Printf("Bounds:  %v .. %v (%.1f x %.1f x %.1f)\n", tree.Bounds.Min, tree.Bounds.Max, size.X, size.Y, size.Z)
	fmt.Printf("Planes:  %d\n", s.Planes)
	fmt.Printf("Nodes:   %d (depth %d)\n", s.Nodes, s.MaxDepth)
	fmt.Printf("Leaves:  %d empty, %d solid\n", s.Leaves, s.SolidCells)
	fmt.Printf("Portals: %d (%d vertices)\n", s.Portals, s.PortalVertices)
	if tree.HasPVS() {
		fmt.Printf("PVS:     %d bytes, %.1f leaves visible on average\n", s.PVSBytes, s.AvgVisible)
	} else {
		fmt.Println("PVS:     none")
	}
}

func cmdQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	radius := fs.Float64("r", 0, "Treat the target as a sphere of this radius")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: pvsc query [-r radius] <file.pvs> <x,y,z> [x,y,z]")
		os.Exit(1)
	}

	tree, err := formats.ParsePVSFile(fs.Arg(0))
	if err != nil {
		fail(err)
	}
	from, err := parsePoint(fs.Arg(1))
	if err != nil {
		fail(err)
	}

	q := bsp.NewVisQuery(tree)
	src := q.SetSourcePoint(from)
	if src == bsp.NoLeaf {
		fmt.Printf("%v: solid\n", from)
		return
	}
	row := tree.LeafRow(src)
	visible := 0
	for i := int32(0); i < int32(tree.LeafCount()); i++ {
		if row == nil || bsp.GetPVSBit(row, i) {
			visible++
		}
	}
	fmt.Printf("%v: leaf %d, %d/%d leaves potentially visible\n", from, src, visible, tree.LeafCount())

	if fs.NArg() < 3 {
		return
	}
	to, err := parsePoint(fs.Arg(2))
	if err != nil {
		fail(err)
	}
	var ok bool
	if *radius > 0 {
		ok = q.IsVolumeVisible(math.Sphere{Center: to, Radius: *radius})
	} else {
		ok = q.IsLeafVisible(tree.FindLeaf(to))
	}
	if ok {
		fmt.Printf("%v: potentially visible\n", to)
	} else {
		fmt.Printf("%v: hidden\n", to)
	}
}

func cmdRender(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	size := fs.Int("size", debug.DefaultRenderOptions().Size, "Image size in pixels")
	from := fs.String("from", "", "Highlight the PVS of the leaf containing x,y,z")
	noPortals := fs.Bool("no-portals", false, "Do not draw portals")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: pvsc render [options] <file.pvs> <out.png>")
		os.Exit(1)
	}

	tree, err := formats.ParsePVSFile(fs.Arg(0))
	if err != nil {
		fail(err)
	}

	opts := debug.DefaultRenderOptions()
	opts.Size = *size
	opts.Portals = !*noPortals
	if *from != "" {
		p, err := parsePoint(*from)
		if err != nil {
			fail(err)
		}
		opts.Source = tree.FindLeaf(p)
	}

	if err := debug.RenderTopDown(tree, fs.Arg(1), opts); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s\n", fs.Arg(1))
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	out := fs.String("o", "", "Write to this path instead of the user config directory")
	fs.Parse(args)

	cfg := config.Default()
	var err error
	if *out != "" {
		err = cfg.SaveTo(*out)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		fail(err)
	}
}

// parsePoint reads "x,y,z".
func parsePoint(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("point %q: expected x,y,z", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("point %q: %w", s, err)
		}
		v[i] = f
	}
	return math.V3(v[0], v[1], v[2]), nil
}
