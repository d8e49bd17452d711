package bootstrap

import (
	"log"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/controller"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository"
	"doc-qa-be/internal/service"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/extraction"
	"doc-qa-be/pkg/llm/factory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	storeProvider := repository.NewProvider(cfg, sysLogger)
	if _, err := storeProvider.Store(); err != nil {
		log.Fatalf("[FATAL] Failed to initialize document store: %v", err)
	}
	documentStore := repository.NewFacade(storeProvider, cfg.Retry, sysLogger)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Services
	// Initialize Embedding Provider based on Config
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
			cfg.Ai.EmbeddingDimension,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiAPIKey, cfg.Ai.EmbeddingDimension)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.GeminiAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	extractor := extraction.NewCompositeExtractor()

	publisherService := service.NewPublisherService(cfg.App.CompletionTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.CompletionTopic, sysLogger)

	ingestionService := service.NewIngestionService(
		documentStore,
		extractor,
		embeddingProvider,
		publisherService,
		cfg.Upload,
		sysLogger,
	)
	documentService := service.NewDocumentService(documentStore, sysLogger)
	chatService := service.NewChatService(
		documentStore,
		embeddingProvider,
		llmProvider,
		cfg.Retrieval,
		sysLogger,
	)

	// 4. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(ingestionService, documentService),
		ChatController:     controller.NewChatController(chatService),

		ConsumerService: consumerService,
		Logger:          sysLogger,
	}
}
