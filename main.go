package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/lidarnav/config"
	"github.com/samuelfneumann/lidarnav/experiment"
	"github.com/samuelfneumann/lidarnav/experiment/checkpointer"
	"github.com/samuelfneumann/lidarnav/experiment/tracker"
	"github.com/samuelfneumann/lidarnav/plot"
)

// dataDirEnv overrides the data directory of the configuration
const dataDirEnv = "LIDARNAV_DATA_DIR"

var (
	configPath  string
	resumePath  string
	weightPath  string
	evaluations int
)

func main() {
	for _, envFile := range []string{".env", "../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd := &cobra.Command{
		Use:   "lidarnav",
		Short: "Train and evaluate hierarchical lidar navigation planners",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		"cfg.yaml", "configuration file")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a planner, evaluating it periodically",
		Long: "Run training rollouts of the planner, evaluating and " +
			"checkpointing it periodically.\n\n" +
			"Transitions are recorded into the GAE buffer and their " +
			"statistics are reported, but the default learner does not " +
			"change the planner weights. Supply a ppo.LearnerFunc to " +
			"ppo.New for gradient updates.",
		RunE: train,
	}
	trainCmd.Flags().StringVar(&resumePath, "resume", "",
		"full checkpoint to resume training from")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a trained planner",
		RunE:  evaluate,
	}
	evaluateCmd.Flags().StringVarP(&weightPath, "weights", "w", "",
		"full checkpoint to evaluate")
	evaluateCmd.Flags().IntVarP(&evaluations, "n", "n", 1,
		"number of evaluation rollouts")
	evaluateCmd.MarkFlagRequired("weights")

	rootCmd.AddCommand(trainCmd, evaluateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the configuration, applying the data directory
// override from the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dir := os.Getenv(dataDirEnv); dir != "" {
		cfg.DataDir = dir
	}
	return cfg, nil
}

func train(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSetup(cfg, os.Stdout)
	if err != nil {
		return err
	}

	runDir, err := checkpointer.NewRunDir(cfg.DataDir)
	if err != nil {
		return err
	}
	log.Printf("saving run data to %v", runDir)
	if err := saveConfig(cfg, runDir); err != nil {
		return err
	}

	if resumePath != "" {
		iteration, err := s.load(resumePath)
		if err != nil {
			return err
		}
		log.Printf("resumed from iteration %v", iteration)
	}

	evalEvery := cfg.Environment.EvalEveryN
	var opts []experiment.TrainerOption
	if evalEvery > 0 {
		opts = append(opts,
			experiment.WithCheckpointer(checkpointer.NewNStep(evalEvery,
				checkpointer.NewFull(s.actor, s.critic),
				checkpointer.IterationFilename(runDir,
					checkpointer.FullPrefix, ".gob"))),
			experiment.WithHooks(s.evaluationHook(runDir)),
		)
	}
	opts = append(opts,
		experiment.WithReporter(experiment.NewReporter(log.New(os.Stdout,
			"", 0))),
		experiment.WithTrackers(
			tracker.Register(tracker.NewMeanReward(
				filepath.Join(runDir, "train_reward.gob")), experiment.Train),
			tracker.Register(tracker.NewDoneRate(
				filepath.Join(runDir, "train_dones.gob")), experiment.Train),
			tracker.Register(tracker.NewMeanReward(
				filepath.Join(runDir, "eval_reward.gob")), experiment.Evaluate),
		),
	)

	trainer, err := experiment.NewTrainer(s.driver,
		cfg.Environment.MaxNUpdate, evalEvery, opts...)
	if err != nil {
		return err
	}
	if err := trainer.Run(); err != nil {
		return err
	}
	return trainer.Save()
}

func evaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSetup(cfg, os.Stdout)
	if err != nil {
		return err
	}

	iteration, err := s.load(weightPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(weightPath)

	for i := 0; i < evaluations; i++ {
		stats, err := s.driver.Run(experiment.Evaluate)
		if err != nil {
			return err
		}
		if err := stats.Report(os.Stdout, iteration); err != nil {
			return err
		}

		files, err := plot.Trajectories(dir, iteration, stats, s.arena)
		if err != nil {
			return err
		}
		for _, f := range files {
			log.Printf("saved %v", f)
		}
	}
	return nil
}

// saveConfig writes the configuration that a run was started with into
// its run directory
func saveConfig(cfg *config.Config, dir string) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("saveconfig: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "cfg.yaml"), out, 0o644)
}
