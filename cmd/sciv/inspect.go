package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/chazu/sciv/scifmt"
	"github.com/chazu/sciv/vm"
)

type resourceInfo struct {
	Kind   string `yaml:"kind"`
	Number int    `yaml:"number"`
	Size   int    `yaml:"size"`
}

func cmdScripts(g *game, out *output) error {
	var infos []resourceInfo
	for _, k := range g.res.List() {
		data, ok := g.res.Find(k.Kind, k.Number)
		if !ok {
			continue
		}
		infos = append(infos, resourceInfo{Kind: k.Kind.String(), Number: k.Number, Size: len(data)})
	}
	return out.emit(infos, func(w io.Writer) {
		fmt.Fprintf(w, "format %s\n", g.engine.Config.Version)
		for _, ri := range infos {
			fmt.Fprintf(w, "%-7s %03d %6d bytes\n", ri.Kind, ri.Number, ri.Size)
		}
	})
}

type objectInfo struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Class      bool   `yaml:"class"`
	Species    string `yaml:"species"`
	Superclass string `yaml:"superclass"`
	Variables  int    `yaml:"variables"`
	Methods    int    `yaml:"methods"`
}

func parseScript(arg string) (int, error) {
	nr, err := strconv.Atoi(arg)
	if err != nil || nr < 0 || nr >= scifmt.MaxScripts {
		return 0, fmt.Errorf("bad script number %q", arg)
	}
	return nr, nil
}

func loadScript(e *vm.EngineState, arg string) (*vm.Script, error) {
	nr, err := parseScript(arg)
	if err != nil {
		return nil, err
	}
	if _, err := e.Instantiate(nr); err != nil {
		return nil, err
	}
	s, _ := e.Segs.ScriptByNumber(nr)
	return s, nil
}

func describeObject(e *vm.EngineState, obj *vm.Object) objectInfo {
	return objectInfo{
		Name:       e.ObjectName(obj.Pos),
		Address:    obj.Pos.String(),
		Class:      obj.IsClass(),
		Species:    e.ObjectName(obj.Species()),
		Superclass: e.ObjectName(obj.Superclass()),
		Variables:  obj.VariableCount(),
		Methods:    obj.MethodCount(),
	}
}

func cmdObjects(g *game, out *output, args []string) error {
	if len(args) != 1 {
		return usageError("objects <script>")
	}
	s, err := loadScript(g.engine, args[0])
	if err != nil {
		return err
	}
	var infos []objectInfo
	for i := range s.Objects {
		infos = append(infos, describeObject(g.engine, &s.Objects[i]))
	}
	return out.emit(infos, func(w io.Writer) {
		for _, oi := range infos {
			kind := "instance"
			if oi.Class {
				kind = "class"
			}
			fmt.Fprintf(w, "%s %-8s %-20s of %-16s super %-16s %d vars, %d methods\n",
				oi.Address, kind, oi.Name, oi.Species, oi.Superclass, oi.Variables, oi.Methods)
		}
	})
}

type lookupInfo struct {
	Send    string `yaml:"send"`
	Kind    string `yaml:"kind"`
	Index   int    `yaml:"index,omitempty"`
	Address string `yaml:"address,omitempty"`
}

func cmdLookup(g *game, out *output, args []string) error {
	if len(args) != 3 {
		return usageError("lookup <script> <object> <selector>")
	}
	e := g.engine
	if _, err := loadScript(e, args[0]); err != nil {
		return err
	}
	addr, err := e.FindObject(args[1])
	if err != nil {
		return err
	}
	sel := e.Selectors.Lookup(args[2])
	if sel < 0 {
		if sel, err = strconv.Atoi(args[2]); err != nil {
			return fmt.Errorf("unknown selector %q", args[2])
		}
	}
	kind, idx, funcp, err := e.ResolveSelector(addr, sel, true)
	if err != nil {
		return err
	}
	li := lookupInfo{Send: e.SendString(addr, sel), Kind: kind.String()}
	switch kind {
	case vm.SelectorVariable:
		li.Index = idx
	case vm.SelectorMethod:
		li.Address = funcp.String()
	}
	return out.emit(li, func(w io.Writer) {
		switch kind {
		case vm.SelectorVariable:
			fmt.Fprintf(w, "%s: variable %d\n", li.Send, li.Index)
		case vm.SelectorMethod:
			fmt.Fprintf(w, "%s: method at %s\n", li.Send, li.Address)
		default:
			fmt.Fprintf(w, "%s: not understood\n", li.Send)
		}
	})
}

type selectorInfo struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

func cmdSelectors(g *game, out *output) error {
	var infos []selectorInfo
	for id, name := range g.engine.Selectors.All() {
		if name != "" {
			infos = append(infos, selectorInfo{ID: id, Name: name})
		}
	}
	return out.emit(infos, func(w io.Writer) {
		for _, si := range infos {
			fmt.Fprintf(w, "%#04x %s\n", si.ID, si.Name)
		}
	})
}

type classInfo struct {
	Species int    `yaml:"species"`
	Script  int    `yaml:"script"`
	Address string `yaml:"address,omitempty"`
}

func cmdClasses(g *game, out *output) error {
	var infos []classInfo
	for species, c := range g.engine.Classes.Entries() {
		if c.Script < 0 {
			continue
		}
		ci := classInfo{Species: species, Script: c.Script}
		if !c.Reg.IsNull() {
			ci.Address = c.Reg.String()
		}
		infos = append(infos, ci)
	}
	return out.emit(infos, func(w io.Writer) {
		fmt.Fprintf(w, "%d of %d class slots used, fingerprint %016x\n",
			len(infos), g.engine.Classes.Len(), g.engine.Classes.Fingerprint())
		for _, ci := range infos {
			fmt.Fprintf(w, "%4d script %03d %s\n", ci.Species, ci.Script, ci.Address)
		}
	})
}

func cmdSegments(g *game, w io.Writer, args []string) error {
	for _, a := range args {
		if _, err := loadScript(g.engine, a); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, g.engine.SegmentTable())
	return err
}
