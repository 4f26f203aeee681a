package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nsf/termbox-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/annelo/cmdblock-server/internal/block"
	"github.com/annelo/cmdblock-server/internal/cube"
	"github.com/annelo/cmdblock-server/pkg/protocol/game"
)

var (
	serverAddr = flag.String("server", "localhost:50051", "Адрес сервера и порт")
	playerName = flag.String("name", "Player1", "Имя игрока")
	cmdBlockID = flag.Int("block", 77777, "ID командного блока")
)

// ClientState содержит состояние клиента
type ClientState struct {
	mu sync.RWMutex

	playerID   string
	playerName string
	// курсор, которым игрок выбирает блок
	cursor cube.Pos
	// известные клиенту блоки, полученные из событий мира
	blocks         map[cube.Pos]int32
	serverMessages []string
	worldTime      game.TimeInfo

	editor *formEditor
	// режим набора сообщения в чат
	chatting bool
	chatLine []rune

	stream game.WorldService_GameStreamClient
	sendMu sync.Mutex
}

// newClientState создает новое состояние клиента
func newClientState(name string) *ClientState {
	return &ClientState{
		playerName:     name,
		blocks:         make(map[cube.Pos]int32),
		serverMessages: []string{"Подключение к серверу..."},
	}
}

// Символы для разных типов блоков
var blockSymbols = map[int32]rune{
	block.TypeAir:   ' ',
	block.TypeGrass: '_',
	block.TypeDirt:  '.',
	block.TypeStone: '#',
}

// addServerMessage добавляет сообщение в список сообщений
func (cs *ClientState) addServerMessage(message string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.serverMessages = append([]string{message}, cs.serverMessages...)
	if len(cs.serverMessages) > 5 {
		cs.serverMessages = cs.serverMessages[:5]
	}
}

func (cs *ClientState) send(msg *game.ClientMessage) {
	cs.sendMu.Lock()
	defer cs.sendMu.Unlock()
	msg.PlayerId = cs.playerID
	if err := cs.stream.Send(msg); err != nil {
		cs.addServerMessage(fmt.Sprintf("Ошибка отправки: %v", err))
	}
}

func (cs *ClientState) blockAction(action game.ActionType, blockType int32) {
	cs.mu.RLock()
	pos := cs.cursor.ToProto()
	cs.mu.RUnlock()
	cs.send(&game.ClientMessage{BlockAction: &game.BlockAction{Action: action, Position: pos, BlockType: blockType}})
}

func (cs *ClientState) moveCursor(dx, dy, dz int32) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.cursor = cs.cursor.Add(dx, dy, dz)
}

// processInput обрабатывает ввод с клавиатуры
func processInput(cs *ClientState) {
	for {
		ev := termbox.PollEvent()
		if ev.Type == termbox.EventError {
			log.Fatalf("Ошибка терминала: %v", ev.Err)
		}
		if ev.Type == termbox.EventInterrupt {
			return
		}
		if ev.Type != termbox.EventKey {
			continue
		}
		if ev.Key == termbox.KeyCtrlC {
			return
		}
		cs.mu.RLock()
		editing, chatting := cs.editor != nil, cs.chatting
		cs.mu.RUnlock()
		switch {
		case editing:
			handleFormKey(cs, ev)
		case chatting:
			handleChatKey(cs, ev)
		default:
			if quit := handleWorldKey(cs, ev); quit {
				return
			}
		}
	}
}

func handleWorldKey(cs *ClientState, ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc:
		return true
	case termbox.KeyArrowUp:
		cs.moveCursor(0, 0, -1)
	case termbox.KeyArrowDown:
		cs.moveCursor(0, 0, 1)
	case termbox.KeyArrowLeft:
		cs.moveCursor(-1, 0, 0)
	case termbox.KeyArrowRight:
		cs.moveCursor(1, 0, 0)
	case termbox.KeyPgup:
		cs.moveCursor(0, 1, 0)
	case termbox.KeyPgdn:
		cs.moveCursor(0, -1, 0)
	case termbox.KeySpace:
		cs.blockAction(game.ActionPlace, int32(*cmdBlockID))
	case termbox.KeyEnter:
		cs.blockAction(game.ActionInteract, 0)
	case termbox.KeyDelete, termbox.KeyBackspace, termbox.KeyBackspace2:
		cs.blockAction(game.ActionDestroy, 0)
	}
	switch ev.Ch {
	case 'p':
		cs.blockAction(game.ActionPlace, block.TypeStone)
	case 't':
		cs.mu.Lock()
		cs.chatting = true
		cs.chatLine = cs.chatLine[:0]
		cs.mu.Unlock()
	case 'q':
		return true
	}
	return false
}

func handleChatKey(cs *ClientState, ev termbox.Event) {
	cs.mu.Lock()
	var line string
	switch {
	case ev.Key == termbox.KeyEsc:
		cs.chatting = false
	case ev.Key == termbox.KeyEnter:
		cs.chatting = false
		line = string(cs.chatLine)
	case ev.Key == termbox.KeyBackspace || ev.Key == termbox.KeyBackspace2:
		if len(cs.chatLine) > 0 {
			cs.chatLine = cs.chatLine[:len(cs.chatLine)-1]
		}
	case ev.Key == termbox.KeySpace:
		cs.chatLine = append(cs.chatLine, ' ')
	case ev.Ch != 0:
		cs.chatLine = append(cs.chatLine, ev.Ch)
	}
	cs.mu.Unlock()
	if line != "" {
		cs.send(&game.ClientMessage{Chat: &game.ChatMessage{Content: line}})
	}
}

func handleFormKey(cs *ClientState, ev termbox.Event) {
	cs.mu.Lock()
	ed := cs.editor
	var reply *game.ClientMessage
	switch {
	case ev.Key == termbox.KeyEsc:
		reply = ed.cancel()
	case ev.Key == termbox.KeyEnter:
		reply = ed.submit()
	case ev.Key == termbox.KeyTab || ev.Key == termbox.KeyArrowDown:
		ed.move(1)
	case ev.Key == termbox.KeyArrowUp:
		ed.move(-1)
	case ev.Key == termbox.KeyArrowLeft:
		ed.cycle(-1)
	case ev.Key == termbox.KeyArrowRight:
		ed.cycle(1)
	case ev.Key == termbox.KeyBackspace || ev.Key == termbox.KeyBackspace2:
		ed.backspace()
	case ev.Key == termbox.KeySpace:
		if e, ok := ed.element(); ok && e.Type == "input" {
			ed.typeRune(' ')
		} else {
			ed.cycle(1)
		}
	case ev.Ch != 0:
		ed.typeRune(ev.Ch)
	}
	if reply != nil {
		cs.editor = nil
	}
	cs.mu.Unlock()
	if reply != nil {
		cs.send(reply)
	}
}

// processServerMessages обрабатывает сообщения от сервера
func processServerMessages(cs *ClientState) {
	for {
		msg, err := cs.stream.Recv()
		if err == io.EOF {
			cs.addServerMessage("Сервер закрыл соединение")
			return
		}
		if err != nil {
			cs.addServerMessage(fmt.Sprintf("Ошибка: %v", err))
			return
		}
		handleServerMessage(cs, msg)
	}
}

func handleServerMessage(cs *ClientState, msg *game.ServerMessage) {
	switch {
	case msg.WorldEvent != nil:
		handleWorldEvent(cs, msg.WorldEvent)
	case msg.ActionResult != nil:
		res := msg.ActionResult
		if !res.Success {
			cs.addServerMessage(fmt.Sprintf("%s отклонено: %s", res.Action, res.Message))
		}
	case msg.ChatBroadcast != nil:
		cs.addServerMessage(fmt.Sprintf("<%s> %s", msg.ChatBroadcast.PlayerName, msg.ChatBroadcast.Content))
	case msg.FormRequest != nil:
		ed, err := newFormEditor(msg.FormRequest)
		if err != nil {
			cs.addServerMessage(err.Error())
			cs.send(&game.ClientMessage{FormResponse: &game.FormResponse{FormId: msg.FormRequest.FormId, Cancelled: true}})
			return
		}
		cs.mu.Lock()
		cs.editor = ed
		cs.mu.Unlock()
	case msg.Pong != nil:
		cs.addServerMessage(fmt.Sprintf("Пинг: %d мс", time.Now().UnixMilli()-msg.Pong.ClientTime))
	}
}

func handleWorldEvent(cs *ClientState, event *game.WorldEvent) {
	switch event.Type {
	case game.EventBlockPlaced:
		if event.Block == nil || event.Block.Position == nil {
			return
		}
		cs.mu.Lock()
		cs.blocks[cube.FromProto(event.Block.Position)] = event.Block.Type
		cs.mu.Unlock()
	case game.EventBlockRemoved:
		if event.Position == nil {
			return
		}
		cs.mu.Lock()
		cs.blocks[cube.FromProto(event.Position)] = block.TypeAir
		cs.mu.Unlock()
	case game.EventTimeChanged:
		if event.Time != nil {
			cs.mu.Lock()
			cs.worldTime = *event.Time
			cs.mu.Unlock()
		}
	case game.EventServerShutdown:
		cs.addServerMessage("Сервер остановлен: " + event.Message)
	}
}

// renderWorld отображает слой мира вокруг курсора
func renderWorld(cs *ClientState) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, height := termbox.Size()

	info := fmt.Sprintf("Игрок: %s | Курсор: %s | День %d, время %d",
		cs.playerName, cs.cursor, cs.worldTime.Day, cs.worldTime.DayTime)
	drawText(0, 0, width, info, termbox.ColorWhite, termbox.ColorDefault)
	for x := 0; x < width; x++ {
		termbox.SetCell(x, 1, '-', termbox.ColorWhite, termbox.ColorDefault)
	}

	startY := 2
	worldHeight := height - startY - 7
	for y := 0; y < worldHeight; y++ {
		for x := 0; x < width; x++ {
			pos := cs.cursor.Add(int32(x-width/2), 0, int32(y-worldHeight/2))
			symbol, fg, bg := ' ', termbox.ColorDefault, termbox.ColorDefault
			if t, ok := cs.blocks[pos]; ok {
				symbol = blockSymbols[t]
				if t == int32(*cmdBlockID) {
					symbol, fg = 'C', termbox.ColorMagenta
				} else if symbol == 0 {
					symbol = '?'
				}
			}
			if pos == cs.cursor {
				fg, bg = termbox.ColorRed, termbox.ColorDarkGray
				if symbol == ' ' {
					symbol = '+'
				}
			}
			termbox.SetCell(x, y+startY, symbol, fg, bg)
		}
	}

	msgY := height - 7
	drawText(0, msgY, width, "----- Сообщения -----", termbox.ColorWhite, termbox.ColorDefault)
	for i, msg := range cs.serverMessages {
		drawText(0, msgY+1+i, width, msg, termbox.ColorCyan, termbox.ColorDefault)
	}

	if cs.editor != nil {
		for i, line := range cs.editor.lines() {
			drawText(2, startY+1+i, width-4, line, termbox.ColorBlack, termbox.ColorWhite)
		}
	}

	bottom := "Стрелки/PgUp/PgDn - курсор, Пробел - командный блок, P - камень, Enter - настроить, Delete - сломать, T - чат, Q - выход"
	if cs.chatting {
		bottom = "Чат: " + string(cs.chatLine) + "_"
	}
	drawText(0, height-1, width, bottom, termbox.ColorWhite, termbox.ColorDefault)
	termbox.Flush()
}

// drawText отображает текст с ограничением по ширине
func drawText(x, y, maxWidth int, text string, fg, bg termbox.Attribute) {
	i := 0
	for _, ch := range text {
		if i >= maxWidth {
			return
		}
		termbox.SetCell(x+i, y, ch, fg, bg)
		i++
	}
}

func main() {
	// Парсим флаги командной строки
	flag.Parse()

	clientState := newClientState(*playerName)

	// Устанавливаем соединение с сервером
	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Не удалось подключиться к серверу: %v", err)
	}
	defer conn.Close()
	client := game.NewWorldServiceClient(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Присоединяемся к игре
	resp, err := client.JoinGame(ctx, &game.JoinRequest{PlayerName: *playerName})
	if err != nil {
		log.Fatalf("Ошибка при подключении к игре: %v", err)
	}
	if !resp.Success {
		log.Fatalf("Не удалось подключиться к игре: %s", resp.ErrorMessage)
	}
	clientState.playerID = resp.PlayerId
	clientState.cursor = cube.FromProto(resp.SpawnPosition)

	stream, err := client.GameStream(ctx)
	if err != nil {
		log.Fatalf("Ошибка при создании потока: %v", err)
	}
	clientState.stream = stream
	// Первое сообщение идентифицирует игрока
	clientState.send(&game.ClientMessage{Ping: &game.Ping{ClientTime: time.Now().UnixMilli()}})

	// Инициализируем терминал
	if err := termbox.Init(); err != nil {
		log.Fatalf("Не удалось инициализировать терминал: %v", err)
	}
	defer termbox.Close()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		cancel()
		termbox.Interrupt()
	}()

	clientState.addServerMessage(fmt.Sprintf("Успешное подключение! ID: %s", resp.PlayerId))
	go processServerMessages(clientState)

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				renderWorld(clientState)
			}
		}
	}()

	processInput(clientState)
	cancel()
}
