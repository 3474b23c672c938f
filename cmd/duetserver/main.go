package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/duetchat/duet/internal/pairing"
	"github.com/duetchat/duet/internal/protocol"
	"github.com/duetchat/duet/internal/ws"
)

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}
	if v := os.Getenv("EGRESS_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.EgressBuffer = n
		}
	}
	if v := os.Getenv("DEV_MODE"); v == "1" || v == "true" {
		config.DevMode = true
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		config.StaticDir = dir
	}

	log.Printf("Duet pairing server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  egress_buffer:   %d", config.EgressBuffer)
	log.Printf("  dev_mode:        %v", config.DevMode)

	// Declare early so the handler closures can capture it; it is assigned
	// once the server (the core's outbox) exists.
	var core *pairing.Core

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// find_partner: enter matchmaking (or re-enter from an active pair)
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeFindPartner, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.FindPartnerMsg)
		if !ok {
			return
		}
		core.FindPartner(conn.ID, m.Interests)
	})

	// -----------------------------------------------------------------------
	// send_message: relay a chat line to the partner, echo to the sender
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMessage, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SendMessageMsg)
		if !ok {
			return
		}
		core.SendMessage(conn.ID, m.Text)
	})

	// -----------------------------------------------------------------------
	// offer / answer / ice-candidate / stop_video: opaque signaling relay
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeOffer, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.OfferMsg)
		if !ok {
			return
		}
		core.Offer(conn.ID, m.Offer)
	})

	dispatcher.Register(protocol.TypeAnswer, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.AnswerMsg)
		if !ok {
			return
		}
		core.Answer(conn.ID, m.To, m.Answer)
	})

	dispatcher.Register(protocol.TypeICECandidate, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.ICECandidateMsg)
		if !ok {
			return
		}
		core.IceCandidate(conn.ID, m.Candidate)
	})

	dispatcher.Register(protocol.TypeStopVideo, func(conn *ws.Connection, msg interface{}) {
		if _, ok := msg.(protocol.StopVideoMsg); !ok {
			return
		}
		core.StopVideo(conn.ID)
	})

	// -----------------------------------------------------------------------
	// skip: dissolve the pair and immediately look for a new partner
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSkip, func(conn *ws.Connection, msg interface{}) {
		m, ok := msg.(protocol.SkipMsg)
		if !ok {
			return
		}
		core.Skip(conn.ID, m.Interests)
	})

	// -----------------------------------------------------------------------
	// leaveChat: leave the pair or the waiting pool without re-matching
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveChat, func(conn *ws.Connection, msg interface{}) {
		if _, ok := msg.(protocol.LeaveChatMsg); !ok {
			return
		}
		core.LeaveChat(conn.ID)
	})

	server := ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	core = pairing.NewCore(server)
	server.SetOnConnect(core.Connect)
	server.SetOnDisconnect(core.Disconnect)
	server.SetStats(core.Counts)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
