// Package main 提供交互式聊天演示客户端
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/qiminjie89/miniapp-sdk/internal/api"
	"github.com/qiminjie89/miniapp-sdk/internal/app"
	"github.com/qiminjie89/miniapp-sdk/internal/chat"
	"github.com/qiminjie89/miniapp-sdk/internal/login"
	"github.com/qiminjie89/miniapp-sdk/pkg/auth"
	"github.com/qiminjie89/miniapp-sdk/pkg/config"
	"github.com/qiminjie89/miniapp-sdk/pkg/logger"
	"github.com/qiminjie89/miniapp-sdk/pkg/realtime"
	"github.com/qiminjie89/miniapp-sdk/pkg/storage"
)

var (
	configPath = flag.String("config", "", "Client config file (yaml)")
	imAddr     = flag.String("addr", "ws://localhost:8080/ws", "Realtime gateway WebSocket address")
	gateway    = flag.String("gateway", "", "Business gateway base URL (empty = dev mode only)")
	userID     = flag.String("user", "test_user_001", "User id for dev login")
	roomID     = flag.String("room", "test_room_001", "Default room id")
	nick       = flag.String("nick", "tester", "Nickname")
	sigSecret  = flag.String("secret", "", "Realtime sig secret (empty = dev_ sig)")
	timeout    = flag.Duration("timeout", 10*time.Second, "Per-operation timeout")
)

// devPlatform 开发模式平台桩：返回固定的登录凭证与资料
type devPlatform struct {
	code string
	nick string
}

func (p *devPlatform) Login(context.Context) (string, error) {
	return p.code, nil
}

func (p *devPlatform) UserProfile(context.Context) (*login.Profile, *api.AuthPayload, error) {
	return &login.Profile{NickName: p.nick},
		&api.AuthPayload{Signature: "dev", EncryptedData: "dev", IV: "dev"}, nil
}

// cliFlow 把登录编排的界面回调落到终端输出
type cliFlow struct{}

func (cliFlow) ShowError(msg string) { log.Printf("[flow] error: %s", msg) }
func (cliFlow) RequestReauthorize()  { log.Printf("[flow] authorization expired, please reauthorize") }
func (cliFlow) NavigateToAuth()      { log.Printf("[flow] not authorized, navigate to auth page") }

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg := loadConfig()
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}); err != nil {
		log.Fatalf("Init logger failed: %v", err)
	}
	defer logger.Sync()

	log.Printf("Starting chat client...")
	log.Printf("  Realtime: %s", cfg.IM.Addr)
	if cfg.Gateway.Host != "" {
		log.Printf("  Gateway:  %s", cfg.Gateway.Host)
	}
	log.Printf("  UserID:   %s", *userID)

	transport := realtime.NewWSTransport(cfg.IM.Addr)
	defer transport.Close()

	manager := chat.NewManager(transport)
	registerListeners(manager)

	agent := api.NewAgent(cfg.Gateway.Host, cfg.Gateway.AppKey, cfg.Gateway.SecretKey, cfg.App.ID, cfg.App.Version, nil)
	catalog := api.NewAPI(agent, cfg.App.ID)
	coordinator := login.NewCoordinator(catalog, &devPlatform{code: "dev_code", nick: *nick}, cfg.App.Version, cfg.Login.WaitTimeout)
	session := app.New(catalog, coordinator, manager, storage.NewMemoryStore(), cliFlow{}, cfg.IM)

	log.Printf("Ready. Type 'help' for commands.")

	commandLoop(session, manager)
}

// loadConfig 读取配置文件，缺省时用命令行参数拼装
func loadConfig() *config.ClientConfig {
	if *configPath != "" {
		cfg, err := config.LoadClientConfig(*configPath)
		if err != nil {
			log.Fatalf("Load config failed: %v", err)
		}
		return cfg
	}
	return &config.ClientConfig{
		App:     config.AppConfig{ID: "wxapp_dev", Version: "0.0.0", Env: "test"},
		Gateway: config.GatewayConfig{Host: *gateway, AppKey: "dev", SecretKey: "dev", Timeout: *timeout},
		IM:      config.IMConfig{AppID: "im_dev", Addr: *imAddr, AccountType: 844, Timeout: *timeout},
		Login:   config.LoginConfig{WaitTimeout: *timeout},
		Log:     config.LogConfig{Level: "info", Format: "console", Output: "stdout"},
	}
}

// registerListeners 打印推送事件
func registerListeners(manager *chat.Manager) {
	manager.OnMessage(func(msg chat.Message) {
		log.Printf("[recv] from=%s seq=%d body=%v", msg.From, msg.Seq, msg.Body)
	})
	manager.OnConnect(func() {
		log.Printf("[conn] connected")
	})
	manager.OnDisconnect(func() {
		log.Printf("[conn] disconnected")
	})
	manager.OnGroupEvent(func(op int, groupID string) {
		log.Printf("[group] system notify op=%d group=%s", op, groupID)
	})
}

// commandLoop 交互式命令循环
func commandLoop(session *app.App, manager *chat.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]

		switch cmd {
		case "help":
			printHelp()

		case "login":
			// 走完整登录编排（需要业务网关）
			ctx, cancel := opCtx()
			user, err := session.DoLogin(ctx)
			cancel()
			if err != nil {
				log.Printf("Login failed: %v", err)
			} else {
				log.Printf("Logged in: uid=%s nick=%s", user.UID, user.NickName)
			}

		case "devlogin":
			// devlogin [user_id] — 跳过网关，直接签名登录传输层
			uid := *userID
			if len(parts) > 1 {
				uid = parts[1]
			}
			sig, err := devSig(uid)
			if err != nil {
				log.Printf("Issue sig failed: %v", err)
				break
			}
			ctx, cancel := opCtx()
			err = manager.Init(ctx, chat.Credentials{
				AppID:       "im_dev",
				AccountType: 844,
				UID:         uid,
				Sig:         sig,
				Nick:        *nick,
			})
			cancel()
			if err != nil {
				log.Printf("Dev login failed: %v", err)
			} else {
				log.Printf("Dev login ok: %s", uid)
			}

		case "join":
			// join [room_id]
			rid := *roomID
			if len(parts) > 1 {
				rid = parts[1]
			}
			ctx, cancel := opCtx()
			err := manager.JoinRoom(ctx, rid)
			cancel()
			if err != nil {
				log.Printf("Join failed: %v", err)
			} else {
				log.Printf("Joined room: %s", rid)
			}

		case "send":
			// send <text...>
			if len(parts) < 2 {
				log.Printf("Usage: send <text>")
				break
			}
			ctx, cancel := opCtx()
			err := manager.SendMessage(ctx, *userID, strings.Join(parts[1:], " "))
			cancel()
			if err != nil {
				log.Printf("Send failed: %v", err)
			}

		case "leave":
			// leave [room_id]
			rid := *roomID
			if s := manager.CurrentSession(); s != nil {
				rid = s.RoomID
			} else if len(parts) > 1 {
				rid = parts[1]
			}
			ctx, cancel := opCtx()
			err := manager.QuitRoom(ctx, rid)
			cancel()
			if err != nil {
				log.Printf("Leave failed: %v", err)
			} else {
				log.Printf("Left room: %s", rid)
			}

		case "status":
			printStatus(manager)

		case "quit", "exit":
			log.Printf("Bye!")
			return

		default:
			log.Printf("Unknown command: %s. Type 'help' for usage.", cmd)
		}

		fmt.Print("> ")
	}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *timeout)
}

// devSig 生成传输层登录签名。提供了密钥时签发真实 usersig，
// 否则用开发模式约定的 dev_ 前缀。
func devSig(uid string) (string, error) {
	if *sigSecret == "" {
		return "dev_" + uid, nil
	}
	return auth.NewSigIssuer(*sigSecret).Issue(uid, "im_dev", time.Hour)
}

func printStatus(manager *chat.Manager) {
	log.Printf("Connection: %s", connStateName(manager.ConnState()))
	log.Printf("Membership: %s", memberStateName(manager.MemberState()))
	if s := manager.CurrentSession(); s != nil {
		log.Printf("Session: room=%s type=%d created=%d", s.RoomID, s.Type, s.CreatedAt)
	} else {
		log.Printf("Session: none")
	}
}

func connStateName(s chat.ConnState) string {
	names := map[chat.ConnState]string{
		chat.Disconnected: "Disconnected",
		chat.Connecting:   "Connecting",
		chat.Connected:    "Connected",
	}
	if name, ok := names[s]; ok {
		return name
	}
	return "Unknown"
}

func memberStateName(s chat.MemberState) string {
	names := map[chat.MemberState]string{
		chat.NotJoined: "NotJoined",
		chat.Joining:   "Joining",
		chat.Joined:    "Joined",
		chat.Leaving:   "Leaving",
	}
	if name, ok := names[s]; ok {
		return name
	}
	return "Unknown"
}

func printHelp() {
	fmt.Println(`
Commands:
  help                 - Show this help
  login                - Full login flow via business gateway
  devlogin [user_id]   - Dev-mode realtime login (dev_ sig, no gateway)
  join [room_id]       - Join a room
  send <text>          - Send a text message to the current room
  leave [room_id]      - Leave the current room
  status               - Show connection and session state
  quit                 - Exit

Examples:
  devlogin user001
  join room001
  send hello world`)
}
