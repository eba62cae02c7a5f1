package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/language"
	"docqa/internal/llmservice"
	"docqa/internal/memory"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/rag"
	"docqa/internal/server"
	"docqa/internal/summarizer"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 15 * time.Second
)

// app holds everything the commands share.
type app struct {
	cfg       *config.Config
	bunDB     *bun.DB
	repo      *db.Repository
	provider  *chromemdb.Provider
	stores    rag.StoreProvider
	rag       *rag.RAG
	ingester  *rag.Ingester
	summaries *summarizer.Service
	memory    *memory.Manager
}

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	ingestPath := flag.String("ingest", "", "Path to a document to ingest")
	userID := flag.Int64("user", 0, "User id for CLI commands")
	fileID := flag.Int64("file", 0, "Document id for CLI commands")
	query := flag.String("query", "", "Question to ask about -file")
	conversationID := flag.Int64("conversation", 0, "Conversation id to continue with -query")
	summary := flag.Bool("summary", false, "Summarize -file")
	refresh := flag.Bool("refresh", false, "Ignore the cached summary")
	export := flag.Bool("export", false, "Export the vector store of -file")
	importPath := flag.String("import", "", "Import an exported vector store into -file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(&cfg.Log)
	log.Debug().Str("config", *configPath).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer a.bunDB.Close()

	switch {
	case *ingestPath != "":
		requireFlags(*userID > 0, "-ingest needs -user")
		doc, n, err := a.ingester.Ingest(ctx, *userID, *ingestPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error ingesting document")
		}
		helper.PrettyPrint(os.Stdout, map[string]interface{}{"document_id": doc.ID, "filename": doc.Filename, "chunks": n})

	case *query != "":
		requireFlags(*userID > 0 && *fileID > 0, "-query needs -user and -file")
		answer, err := a.rag.Query(ctx, rag.Question{UserID: *userID, FileID: *fileID, Text: *query, ConversationID: *conversationID})
		if err != nil {
			log.Fatal().Err(err).Msg("Error querying")
		}
		printAnswer(*query, answer)

	case *summary:
		requireFlags(*userID > 0 && *fileID > 0, "-summary needs -user and -file")
		res, err := a.summaries.Summarize(ctx, *userID, *fileID, *refresh)
		if err != nil {
			log.Fatal().Err(err).Msg("Error summarizing")
		}
		helper.PrettyPrint(os.Stdout, res)

	case *export:
		requireFlags(*userID > 0 && *fileID > 0, "-export needs -user and -file")
		store, err := a.provider.Open(*userID, *fileID)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening store")
		}
		path, err := store.Export(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error exporting store")
		}
		log.Info().Str("file", path).Msg("Exported store")

	case *importPath != "":
		requireFlags(*userID > 0 && *fileID > 0, "-import needs -user and -file")
		store, err := a.provider.Create(*userID, *fileID)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating store")
		}
		if err := store.Import(ctx, *importPath); err != nil {
			log.Fatal().Err(err).Msg("Error importing store")
		}
		a.provider.Invalidate(*userID, *fileID)
		log.Info().Int("chunks", store.Count()).Msg("Imported store")

	default:
		if err := a.serve(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}
}

func setupLogging(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	sqlDB, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	bunDB := db.NewDB(sqlDB, cfg.Database.Debug)
	if err := db.InitDB(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	repo := db.NewRepository(bunDB)

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	llm, err := llmservice.NewLLMClient(&cfg.LLM)
	if err != nil {
		bunDB.Close()
		return nil, err
	}

	provider := chromemdb.NewProvider(&cfg.RAG, embedding.EmbeddingFunc(embedder))
	stores := rag.ChromemStores(provider)
	selector := language.NewSelector(nil, cfg.Language.Default, cfg.Language.Alternate)
	mem := memory.NewManager(repo, &cfg.Memory)

	return &app{
		cfg:      cfg,
		bunDB:    bunDB,
		repo:     repo,
		provider: provider,
		stores:   stores,
		rag: rag.NewRAG(repo, stores, rag.NewRetriever(&cfg.RAG),
			rag.NewComposer(llm, selector), mem, cfg.RAG.TopK),
		ingester: rag.NewIngester(repo, stores, embedder, parser.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)),
		summaries: summarizer.NewService(repo, stores, summarizer.New(llm, selector, &cfg.Summary),
			summarizer.NewRegistry(), &cfg.Summary),
		memory: mem,
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	srv, err := server.NewServer(&a.cfg.Server, a.rag, a.summaries, a.repo, a.memory)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.memory.Run(gctx)
		return nil
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printAnswer(query string, answer *models.Answer) {
	labels := make([]string, len(answer.Sources))
	for i, src := range answer.Sources {
		labels[i] = fmt.Sprintf("[Fragment %d] %s", src.ChunkIndex, src.ContentPreview)
	}
	response := models.PromptResponse{
		Query:   query,
		Source:  strings.Join(labels, "\n"),
		Content: answer.Answer,
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Int64("conversation_id", answer.ConversationID).Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func requireFlags(ok bool, msg string) {
	if !ok {
		log.Fatal().Msg(msg)
	}
}
