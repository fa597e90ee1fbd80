package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/aktagon/note-writer/internal/artifact"
	"github.com/aktagon/note-writer/internal/config"
	"github.com/aktagon/note-writer/internal/logger"
	"github.com/aktagon/note-writer/internal/pipeline"
	"github.com/aktagon/note-writer/internal/topics"
)

var (
	configFile   string
	templatePath string
	snippetsPath string
	debugMode    bool

	generateIndex int
	generateNext  bool
)

var rootCmd = &cobra.Command{
	Use:           "note-writer",
	Short:         "Generate Xiaohongshu book notes and covers from a topic queue",
	Long:          `Turns queued book-recommendation topics into a note draft and a cover image using an LLM and an image service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default config, voice snippets and an empty topic dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = defaultConfigFile
		}
		s, err := config.Default()
		if err != nil {
			return err
		}
		created, err := ensureConfigExists(path, s)
		if err != nil {
			return err
		}
		if len(created) == 0 {
			fmt.Println("Nothing to do, all files exist")
			return nil
		}
		for _, f := range created {
			fmt.Printf("✓ Created %s\n", f)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List unpublished topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(configFile)
		if err != nil {
			return err
		}
		store := topics.NewStore(s.Data.Topics)
		list, err := store.ListUnpublished()
		if err != nil {
			return err
		}
		stats, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Println(renderTopicTable(list))
		fmt.Println(renderStats(stats))
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [topic-id]",
	Short: "Generate the note and cover for one topic",
	Long: `Generate the note and cover for one topic, addressed by id, by
--index into the unpublished list, or --next for the first unpublished topic.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		byIndex := cmd.Flags().Changed("index")
		modes := 0
		for _, set := range []bool{len(args) == 1, byIndex, generateNext} {
			if set {
				modes++
			}
		}
		if modes != 1 {
			return errors.New("specify exactly one of a topic id, --index or --next")
		}

		s, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log, err := newLogger(s)
		if err != nil {
			return err
		}
		defer log.Sync()

		processor, err := NewNoteProcessor(s, cliOverrides(cmd), log)
		if err != nil {
			return fmt.Errorf("failed to create processor: %w", err)
		}

		ctx := cmd.Context()
		var res pipeline.Result
		switch {
		case len(args) == 1:
			res = processor.Generate(ctx, args[0])
		case byIndex:
			res = processor.GenerateAt(ctx, generateIndex)
		default:
			res = processor.GenerateAt(ctx, 0)
		}
		fmt.Print(renderResult(res))

		if !res.Success() {
			return fmt.Errorf("generation did not complete (%s)", res.State)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <topic-id>",
	Short: "Render a generated note in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(configFile)
		if err != nil {
			return err
		}
		path := artifact.NotePath(s.Output.Directory, args[0])
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("no note for %q: %w", args[0], err)
		}
		out, err := renderMarkdown(string(content))
		if err != nil {
			return err
		}
		fmt.Print(out)

		coverPath := artifact.CoverPath(s.Output.Directory, args[0])
		if _, err := os.Stat(coverPath); err == nil {
			fmt.Println(renderField("cover", coverPath))
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		initial, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log, err := newLogger(initial)
		if err != nil {
			return err
		}
		defer log.Sync()

		manager, err := config.NewManager(configFile, log)
		if err != nil {
			return err
		}
		manager.Watch()

		if initial.App.LogMode == "production" || initial.App.LogMode == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}
		server := NewServer(manager.Get, cliOverrides(cmd), log)
		srv := &http.Server{
			Addr:              initial.App.Addr(),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(cmd.Context(), srv, log)
	},
}

func runServer(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("→ Listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(s *config.Settings) (*logger.Logger, error) {
	log, err := logger.New(s.App.LogMode, debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// cliOverrides collects the data-file flags that were set explicitly.
func cliOverrides(cmd *cobra.Command) *ConfigOverrides {
	overrides := &ConfigOverrides{}
	if cmd.Flags().Changed("template") {
		overrides.TemplatePath = &templatePath
	}
	if cmd.Flags().Changed("snippets") {
		overrides.SnippetsPath = &snippetsPath
	}
	return overrides
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./note-writer.yaml or $HOME/.note-writer/note-writer.yaml)")
	rootCmd.PersistentFlags().StringVar(&templatePath, "template", "", "Path to custom prompt template file")
	rootCmd.PersistentFlags().StringVar(&snippetsPath, "snippets", "", "Path to custom voice snippet file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	generateCmd.Flags().IntVar(&generateIndex, "index", 0, "Position in the unpublished list (0-based)")
	generateCmd.Flags().BoolVar(&generateNext, "next", false, "Generate the first unpublished topic")

	rootCmd.AddCommand(initCmd, listCmd, generateCmd, showCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
