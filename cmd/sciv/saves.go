package main

import (
	"fmt"
	"io"
	"time"

	"github.com/chazu/sciv/savegame"
)

func openCatalog(g *game) (*savegame.Catalog, error) {
	return savegame.Open(g.manifest.CatalogPath(), g.manifest.SaveDir())
}

type saveInfo struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Created  string `yaml:"created"`
	Version  string `yaml:"version"`
	Restores bool   `yaml:"restores"`
	Coredump bool   `yaml:"coredump,omitempty"`
}

func cmdSaves(g *game, out *output) error {
	cat, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.List()
	if err != nil {
		return err
	}
	var infos []saveInfo
	for _, ent := range entries {
		infos = append(infos, saveInfo{
			ID:       ent.ID,
			Name:     ent.Name,
			Created:  ent.Created.Format(time.RFC3339),
			Version:  ent.ScriptVersion,
			Restores: cat.TestSavegame(ent.ID, g.engine),
			Coredump: ent.Coredump,
		})
	}
	return out.emit(infos, func(w io.Writer) {
		for _, si := range infos {
			mark := " "
			if !si.Restores {
				mark = "!"
			}
			fmt.Fprintf(w, "%s %s %s %-8s %s\n", mark, si.ID, si.Created, si.Version, si.Name)
		}
	})
}

// cmdSave boots the game (script 0 and its game object) and saves the
// resulting state.
func cmdSave(g *game, w io.Writer, args []string, coredump bool) error {
	if len(args) != 1 {
		return usageError("save <name>")
	}
	if err := g.engine.SetGameObject(); err != nil {
		return err
	}
	cat, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer cat.Close()

	entry, err := cat.GameSaveState(g.engine, args[0], coredump)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %q as %s\n", entry.Name, entry.ID)
	return nil
}

func cmdRestore(g *game, w io.Writer, args []string) error {
	if len(args) != 1 {
		return usageError("restore <id>")
	}
	cat, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer cat.Close()

	e, err := cat.GameRestoreState(args[0], g.engine)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "game object %s (%s), %d frames\n", e.GameObject, e.ObjectName(e.GameObject), e.Stack.Len())
	_, err = io.WriteString(w, e.SegmentTable())
	return err
}

func cmdDeleteSave(g *game, args []string) error {
	if len(args) != 1 {
		return usageError("delete-save <id>")
	}
	cat, err := openCatalog(g)
	if err != nil {
		return err
	}
	defer cat.Close()
	return cat.Delete(args[0])
}
