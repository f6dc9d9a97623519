package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/foodshed/siteplan/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Optimizer OptimizerConfig `yaml:"optimizer" mapstructure:"optimizer"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Census    CensusConfig    `yaml:"census" mapstructure:"census"`
	Advisor   AdvisorConfig   `yaml:"advisor" mapstructure:"advisor"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OptimizerConfig carries every tunable of the planning pipeline. The
// defaults encode the reference heuristics; none of them is hard-coded in
// the optimizer itself.
type OptimizerConfig struct {
	DepotBudgetFraction       float64              `yaml:"depot_budget_fraction" mapstructure:"depot_budget_fraction"`
	MaxFacilities             int                  `yaml:"max_facilities" mapstructure:"max_facilities"`
	MaxDepots                 int                  `yaml:"max_depots" mapstructure:"max_depots"`
	MinDistanceMiles          float64              `yaml:"min_distance_miles" mapstructure:"min_distance_miles"`
	MinDepotDistanceMiles     float64              `yaml:"min_depot_distance_miles" mapstructure:"min_depot_distance_miles"`
	DepotServiceRadius        float64              `yaml:"depot_service_radius_miles" mapstructure:"depot_service_radius_miles"`
	DistributionServiceRadius float64              `yaml:"distribution_service_radius_miles" mapstructure:"distribution_service_radius_miles"`
	Weights                   model.ScoringWeights `yaml:"scoring_weights" mapstructure:"scoring_weights"`
	NeedNormalization         float64              `yaml:"need_normalization" mapstructure:"need_normalization"`
	BudgetFloorFraction       float64              `yaml:"budget_floor_fraction" mapstructure:"budget_floor_fraction"`
	ScoringWorkers            int                  `yaml:"scoring_workers" mapstructure:"scoring_workers"`
	Amortization              AmortizationConfig   `yaml:"amortization" mapstructure:"amortization"`
	Decluster                 DeclusterConfig      `yaml:"decluster" mapstructure:"decluster"`
	Cost                      CostConfig           `yaml:"cost" mapstructure:"cost"`
	Impact                    ImpactConfig         `yaml:"impact" mapstructure:"impact"`
}

// AmortizationConfig sets how many months of recurring cost are added to
// setup cost when charging a facility against the budget.
type AmortizationConfig struct {
	PrimaryMonths  int `yaml:"primary_months" mapstructure:"primary_months"`
	FallbackMonths int `yaml:"fallback_months" mapstructure:"fallback_months"`
	DepotMonths    int `yaml:"depot_months" mapstructure:"depot_months"`
}

// DeclusterConfig controls the grid-based zone occupancy policy.
type DeclusterConfig struct {
	GridSize              int     `yaml:"grid_size" mapstructure:"grid_size"`
	CapacityOneBelow      int     `yaml:"capacity_one_below" mapstructure:"capacity_one_below"`
	CapacityTwoBelow      int     `yaml:"capacity_two_below" mapstructure:"capacity_two_below"`
	NeighborOccupiedRatio float64 `yaml:"neighbor_occupied_ratio" mapstructure:"neighbor_occupied_ratio"`
}

// CostConfig parameterizes the facility cost model. Setup and recurring
// costs grow with expected impact but are capped so a single extreme-need
// cell cannot absorb the whole budget.
type CostConfig struct {
	SetupBase        float64 `yaml:"setup_base" mapstructure:"setup_base"`
	SetupPerUnit     float64 `yaml:"setup_per_unit" mapstructure:"setup_per_unit"`
	SetupCap         float64 `yaml:"setup_cap" mapstructure:"setup_cap"`
	RecurringBase    float64 `yaml:"recurring_base" mapstructure:"recurring_base"`
	RecurringPerUnit float64 `yaml:"recurring_per_unit" mapstructure:"recurring_per_unit"`
	RecurringCap     float64 `yaml:"recurring_cap" mapstructure:"recurring_cap"`
	DepotMultiplier  float64 `yaml:"depot_multiplier" mapstructure:"depot_multiplier"`
}

// ImpactConfig bounds the expected-impact estimate of a facility.
type ImpactConfig struct {
	ServeFraction         float64 `yaml:"serve_fraction" mapstructure:"serve_fraction"`
	PopulationCapFraction float64 `yaml:"population_cap_fraction" mapstructure:"population_cap_fraction"`
}

// IngestConfig configures dataset ingestion.
type IngestConfig struct {
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
	ShapefileURL string `yaml:"shapefile_url" mapstructure:"shapefile_url"`
	GeoIDField   string `yaml:"geoid_field" mapstructure:"geoid_field"`
	PopField     string `yaml:"pop_field" mapstructure:"pop_field"`
}

// CensusConfig configures the ACS demographics client.
type CensusConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AdvisorConfig configures the optional narrative summary.
type AdvisorConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the planning server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "siteplan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("optimizer.depot_budget_fraction", 0.25)
	v.SetDefault("optimizer.max_facilities", 1000)
	v.SetDefault("optimizer.max_depots", 4)
	v.SetDefault("optimizer.min_distance_miles", 0.5)
	v.SetDefault("optimizer.min_depot_distance_miles", 3.0)
	v.SetDefault("optimizer.depot_service_radius_miles", 6.0)
	v.SetDefault("optimizer.distribution_service_radius_miles", 1.5)
	v.SetDefault("optimizer.scoring_weights.need", 0.5)
	v.SetDefault("optimizer.scoring_weights.access_barrier", 0.3)
	v.SetDefault("optimizer.scoring_weights.poverty", 0.2)
	v.SetDefault("optimizer.need_normalization", 1000.0)
	v.SetDefault("optimizer.budget_floor_fraction", 0.10)
	v.SetDefault("optimizer.scoring_workers", 8)
	v.SetDefault("optimizer.amortization.primary_months", 12)
	v.SetDefault("optimizer.amortization.fallback_months", 6)
	v.SetDefault("optimizer.amortization.depot_months", 6)
	v.SetDefault("optimizer.decluster.grid_size", 6)
	v.SetDefault("optimizer.decluster.capacity_one_below", 12)
	v.SetDefault("optimizer.decluster.capacity_two_below", 20)
	v.SetDefault("optimizer.decluster.neighbor_occupied_ratio", 0.7)
	v.SetDefault("optimizer.cost.setup_base", 100000.0)
	v.SetDefault("optimizer.cost.setup_per_unit", 20.0)
	v.SetDefault("optimizer.cost.setup_cap", 200000.0)
	v.SetDefault("optimizer.cost.recurring_base", 10000.0)
	v.SetDefault("optimizer.cost.recurring_per_unit", 4.0)
	v.SetDefault("optimizer.cost.recurring_cap", 20000.0)
	v.SetDefault("optimizer.cost.depot_multiplier", 0.8)
	v.SetDefault("optimizer.impact.serve_fraction", 0.4)
	v.SetDefault("optimizer.impact.population_cap_fraction", 0.3)
	v.SetDefault("ingest.temp_dir", "/tmp/siteplan")
	v.SetDefault("ingest.geoid_field", "GEOID20")
	v.SetDefault("ingest.pop_field", "POP20")
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.requests_per_sec", 10.0)
	v.SetDefault("advisor.model", "claude-sonnet-4-5-20250929")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Request builds a model.Request from the optimizer defaults, overridable
// by the caller before running.
func (c *Config) Request(totalBudget float64) model.Request {
	o := c.Optimizer
	return model.Request{
		TotalBudget:               totalBudget,
		DepotBudgetFraction:       o.DepotBudgetFraction,
		MaxFacilities:             o.MaxFacilities,
		MaxDepots:                 o.MaxDepots,
		MinDistanceMiles:          o.MinDistanceMiles,
		MinDepotDistanceMiles:     o.MinDepotDistanceMiles,
		DepotServiceRadius:        o.DepotServiceRadius,
		DistributionServiceRadius: o.DistributionServiceRadius,
		Weights:                   o.Weights,
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
