package main

import (
	"flag"
	"log"

	"github.com/pkg/profile"
	"github.com/trailbyte/nescore/internal/nes"
	"github.com/trailbyte/nescore/internal/ui"
)

func main() {
	romPath := flag.String("rom", "", "path to an iNES ROM image (.nes or .zip)")
	profileMode := flag.String("profile", "", "enable profiling: cpu, mem, or \"\" to disable")
	flag.Parse()

	if *romPath == "" {
		log.Fatalln("usage: nescore -rom <path to .nes>")
	}

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile).Stop()
	}

	cart, err := nes.NewCartFromFile(*romPath)
	if err != nil {
		log.Fatalf("couldn't load rom: %s\n", err.Error())
	}

	bus := nes.NewBus()
	bus.LoadCart(cart)

	if err := ui.RunUI(ui.New(bus)); err != nil {
		log.Fatalf("ui exited with an error: %s\n", err.Error())
	}
}
