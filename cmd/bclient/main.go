package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/annelo/cmdblock-server/internal/form"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

var (
	serverAddr   = flag.String("addr", "localhost:50051", "gRPC адрес сервера")
	clientsCount = flag.Int("n", 100, "Количество эмулируемых клиентов")
	duration     = flag.Duration("duration", 30*time.Second, "Длительность теста")
	blockID      = flag.Int("block", 77777, "ID командного блока")
)

// stats собирает результаты всех ботов.
type stats struct {
	applied  atomic.Int64
	rejected atomic.Int64
	forms    atomic.Int64
	pongs    atomic.Int64
}

func main() {
	flag.Parse()
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()
	log.Infow("запускаем bclient", "clients", *clientsCount, "addr", *serverAddr, "duration", *duration)

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalw("dial", "error", err)
	}
	defer conn.Close()
	client := game.NewWorldServiceClient(conn)

	var (
		wg sync.WaitGroup
		st stats
	)
	stopCtx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	for i := 0; i < *clientsCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runClient(stopCtx, client, id, &st); err != nil {
				log.Warnw("client stopped", "client", id, "error", err)
			}
		}(i)
	}

	wg.Wait()
	log.Infow("bclient завершил работу",
		"applied", st.applied.Load(),
		"rejected", st.rejected.Load(),
		"forms", st.forms.Load(),
		"pongs", st.pongs.Load())
}

func runClient(ctx context.Context, client game.WorldServiceClient, id int, st *stats) error {
	name := fmt.Sprintf("bot-%d", id)
	joinResp, err := client.JoinGame(ctx, &game.JoinRequest{PlayerName: name})
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if !joinResp.Success {
		return fmt.Errorf("join: %s", joinResp.ErrorMessage)
	}
	playerID := joinResp.PlayerId
	spawn := *joinResp.SpawnPosition

	stream, err := client.GameStream(ctx)
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	// отправляем первое сообщение для идентификации
	if err := stream.Send(&game.ClientMessage{PlayerId: playerID}); err != nil {
		return fmt.Errorf("send id: %w", err)
	}

	// stream.Send нельзя вызывать из нескольких горутин одновременно
	var sendMu sync.Mutex
	send := func(msg *game.ClientMessage) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		msg.PlayerId = playerID
		return stream.Send(msg)
	}

	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				return
			}
			switch {
			case msg.ActionResult != nil:
				if msg.ActionResult.Success {
					st.applied.Add(1)
				} else {
					st.rejected.Add(1)
				}
			case msg.Pong != nil:
				st.pongs.Add(1)
			case msg.FormRequest != nil:
				st.forms.Add(1)
				_ = send(answerForm(msg.FormRequest, name))
			}
		}
	}()

	randSrc := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pos := spawn
			pos.X += int32(randSrc.Intn(9) - 4)
			pos.Z += int32(randSrc.Intn(9) - 4)

			var action *game.BlockAction
			switch randSrc.Intn(4) {
			case 0:
				action = &game.BlockAction{Action: game.ActionPlace, Position: &pos, BlockType: int32(*blockID)}
			case 1:
				action = &game.BlockAction{Action: game.ActionInteract, Position: &pos}
			case 2:
				action = &game.BlockAction{Action: game.ActionDestroy, Position: &pos}
			default:
				if err := send(&game.ClientMessage{Ping: &game.Ping{ClientTime: time.Now().UnixMilli()}}); err != nil {
					return err
				}
				continue
			}
			if err := send(&game.ClientMessage{BlockAction: action}); err != nil {
				return err
			}
		}
	}
}

// answerForm заполняет форму значениями по умолчанию и подставляет команду в первое поле.
func answerForm(req *game.FormRequest, name string) *game.ClientMessage {
	decoded, err := form.Decode(req.Form)
	if err != nil {
		return &game.ClientMessage{FormResponse: &game.FormResponse{FormId: req.FormId, Cancelled: true}}
	}
	answer := decoded.Defaults()
	answer.Set(0, "say hello from "+name)
	data, err := json.Marshal(answer)
	if err != nil {
		return &game.ClientMessage{FormResponse: &game.FormResponse{FormId: req.FormId, Cancelled: true}}
	}
	return &game.ClientMessage{FormResponse: &game.FormResponse{FormId: req.FormId, Data: data}}
}
