package container

import (
	"fmt"

	"abmviz/adapters/chart"
	"abmviz/adapters/excel"
	"abmviz/adapters/httpapi"
	"abmviz/adapters/jsonstore"
	"abmviz/app"
	"abmviz/domain/catalogue"
	"abmviz/internal"
	"abmviz/internal/aggregation"
	"abmviz/internal/config"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *internal.Logger
	Catalogue *catalogue.Catalogue

	// Adapters
	Store    *jsonstore.Store
	Exporter *excel.Exporter
	Charts   *chart.Renderer

	// Services
	Engine    *aggregation.Engine
	Analysis  *app.AnalysisService
	Inspector *app.Inspector
}

// New creates a new dependency injection container. A nil logger uses the
// default logger.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: logger.OrDefault(),
	}

	if err := c.initCatalogue(); err != nil {
		return nil, fmt.Errorf("failed to initialize catalogue: %w", err)
	}
	c.initAdapters()
	c.initServices()

	c.Logger.Debug("[Container] initialized: %d workers, data %s, output %s",
		cfg.Pipeline.Workers(), cfg.Data.Dir, cfg.Output.Dir)
	return c, nil
}

// initCatalogue builds the reference catalogue, resized when an experiment
// count is configured
func (c *Container) initCatalogue() error {
	c.Catalogue = catalogue.Default()
	if n := c.Config.Pipeline.Experiments; n > 0 {
		cat, err := c.Catalogue.WithExperiments(n)
		if err != nil {
			return err
		}
		c.Catalogue = cat
	}
	return nil
}

func (c *Container) initAdapters() {
	c.Store = jsonstore.NewStore(c.Config.Data.Dir, c.Logger)
	c.Exporter = excel.NewExporter(c.Config.Output.Dir, c.Catalogue, c.Logger)
	c.Charts = chart.NewRenderer(c.Config.Output.Dir, c.Catalogue, c.Logger)
}

func (c *Container) initServices() {
	c.Engine = aggregation.NewEngine(c.Catalogue,
		aggregation.WithLogger(c.Logger),
		aggregation.WithWorkers(c.Config.Pipeline.Workers()))
	c.Analysis = app.NewAnalysisService(c.Store, c.Exporter, c.Charts, c.Engine, c.Logger)
	c.Inspector = app.NewInspector(c.Store, c.Catalogue)
}

// RunRequest builds the analysis request described by the configuration
func (c *Container) RunRequest() app.RunRequest {
	return app.RunRequest{
		Baseline:      c.Config.Data.BaselineFile,
		ScenarioFiles: c.Config.Data.ScenarioFiles,
		ScenarioNames: c.Config.Data.ScenarioNames,
		Tracked:       c.Config.Pipeline.Tracked,
		Thing:         c.Config.Plot.Thing,
		SectorThing:   c.Config.Plot.SectorThing,
	}
}

// HTTPHandler serves the outcome of the last analysis run
func (c *Container) HTTPHandler() *httpapi.Server {
	return httpapi.NewServer(c.Analysis, c.Logger)
}
