package bootstrap

import (
	"time"

	"memory-dashboard-be/internal/config"
	"memory-dashboard-be/internal/constant"
	"memory-dashboard-be/internal/controller"
	"memory-dashboard-be/internal/handler"
	"memory-dashboard-be/internal/pkg/logger"
	"memory-dashboard-be/internal/repository/memory"
	"memory-dashboard-be/internal/service"
	"memory-dashboard-be/internal/websocket"
	"memory-dashboard-be/pkg/agent"
	"memory-dashboard-be/pkg/conversation/degraded"
	"memory-dashboard-be/pkg/memstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	ChatController controller.IChatController
	NoticeHandler  *handler.NoticeHandler
	WebSocketHub   *websocket.Hub

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus (in-process; persistence jobs never leave the gateway)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Remote collaborators
	// The consumer gets its own store client: best-effort persist outcomes
	// must not touch any surface's degraded flag.
	persistStore := memstore.NewClient(cfg.Remote.MemoryAPIBaseURL)
	agentClient := agent.NewClient(cfg.Remote.AgentAPIBaseURL)

	persistPublisher := service.NewPersistPublisher(pubSub, constant.PersistMessageTopic, sysLogger)
	consumerService := service.NewConsumerService(pubSub, constant.PersistMessageTopic, persistStore, sysLogger)

	// 4. WebSocket notice hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.NoticeLogFilePath)
	wsHub := websocket.NewHub(wsLogger)
	go wsHub.Run()

	// 5. Per-surface chat services. Each surface owns its conversation state,
	// its registry, its detector, and a store client observed by that
	// detector (any successful store call clears the surface's flag).
	surfaces := memory.NewSurfaceRepository(time.Duration(cfg.App.SurfaceTTLMinutes) * time.Minute)
	factory := func(userID, surfaceKey string) service.IChatService {
		detector := degraded.NewDetector()
		detector.OnChange(func(notice *degraded.Notice) {
			wsHub.PushNotice(surfaceKey, notice)
		})

		store := memstore.NewClient(cfg.Remote.MemoryAPIBaseURL)
		store.Observe(detectorObserver{detector})

		return service.NewChatService(userID, store, agentClient, persistPublisher, detector, sysLogger)
	}

	return &Container{
		ChatController:  controller.NewChatController(surfaces, factory),
		NoticeHandler:   handler.NewNoticeHandler(wsHub, wsLogger),
		WebSocketHub:    wsHub,
		ConsumerService: consumerService,
	}
}

// detectorObserver clears the degraded flag on any successful store call.
type detectorObserver struct {
	detector *degraded.Detector
}

func (o detectorObserver) OnStoreSuccess() {
	o.detector.Clear()
}
