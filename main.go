package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/jasonlvhit/gocron"
	"github.com/peterbourgon/ff"
	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/api"
	"github.com/sailtactics/windfield-server/estimator"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/forecast"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/xmpp"

	_ "net/http/pprof"
)

func main() {

	fs := flag.NewFlagSet("windfield-server", flag.ExitOnError)
	var (
		listen       = fs.String("listen", ":8888", "http listen address")
		debug        = fs.Bool("debug", false, "debug logging")
		cpuprofile   = fs.Bool("cpuprofile", false, "profile the heavy handlers")
		polarFile    = fs.String("polar-file", "", "json file overriding the polar ratio table")
		forecastDir  = fs.String("forecast-dir", "", "directory of GRIB2 forecast files used as reference wind")
		seed         = fs.Int64("seed", 0, "jitter seed, 0 seeds from the clock")
		xmppHost     = fs.String("xmpp-host", "", "")
		xmppJid      = fs.String("xmpp-jid", "", "")
		xmppPassword = fs.String("xmpp-password", "", "")
		xmppTo       = fs.String("xmpp-to", "", "")
	)
	ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix())

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	x := &xmpp.Xmpp{Config: xmpp.Config{Host: *xmppHost, Jid: *xmppJid, Password: *xmppPassword, To: *xmppTo}}

	var polars *polar.Table
	if *polarFile != "" {
		polars = polar.Load(*polarFile)
	} else {
		polars = polar.NewTable()
	}

	fusion := field.NewFusionSystem(field.Config{Seed: *seed})

	if *forecastDir != "" {
		log.Info("Load forecasts")
		fusion.SetReference(forecast.NewProvider(*forecastDir))
	}

	s := gocron.NewScheduler()
	job := s.Every(5).Minutes()
	job.Do(fusion.PruneStale)
	go s.Start()

	log.Info("Start server")

	router := api.InitServer(*cpuprofile, polars, estimator.New(polars), fusion, x)

	log.Fatal(http.ListenAndServe(*listen, handlers.CompressHandler(handlers.CombinedLoggingHandler(os.Stdout, router))))
}
