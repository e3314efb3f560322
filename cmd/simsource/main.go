package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pathsense/go-pathsense/internal/log"
	"github.com/pathsense/go-pathsense/pkg/protocol"
)

const (
	frameWidth  = 320
	frameHeight = 240
)

func main() {
	server := flag.String("server", "ws://localhost:5000", "Server base URL")
	id := flag.String("id", "sim-1", "Source identifier")
	fps := flag.Float64("fps", 2.0, "Frames per second")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel)

	url := fmt.Sprintf("%s/ws/source/%s", *server, *id)
	fmt.Println("📷 pathsense simulated source")
	fmt.Printf("   Target: %s\n", url)
	fmt.Println()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Error("failed to connect", "url", url, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Drain server messages (pong replies) so the connection stays healthy.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := sendState(conn, *id); err != nil {
		log.Error("failed to send state", "err", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(float64(time.Second) / *fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frameID uint64
	for {
		select {
		case <-sigChan:
			fmt.Println("\n👋 Stopping...")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			frameID++
			data, err := renderFrame(frameID)
			if err != nil {
				log.Error("failed to encode frame", "err", err)
				continue
			}
			msg, err := protocol.NewFrameMessage(frameWidth, frameHeight, data, frameID)
			if err != nil {
				log.Error("failed to build frame message", "err", err)
				continue
			}
			payload, err := msg.Bytes()
			if err != nil {
				log.Error("failed to serialize frame message", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Error("connection lost", "err", err)
				os.Exit(1)
			}
			log.Debug("frame sent", "frame_id", frameID, "bytes", len(data))
		}
	}
}

func sendState(conn *websocket.Conn, id string) error {
	msg, err := protocol.NewMessage(protocol.TypeState, protocol.StateData{
		Connected: true,
		Label:     id,
	})
	if err != nil {
		return err
	}
	payload, err := msg.Bytes()
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// renderFrame draws a gray scene with a dark block that drifts from side
// to side, so the analyzer has an obstacle to find and a direction to call.
func renderFrame(frameID uint64) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
	for i := range img.Pix {
		img.Pix[i] = 180
	}

	// Block sweeps left, right, left again over a 40 frame cycle.
	phase := int(frameID % 40)
	var offset int
	if phase < 20 {
		offset = phase
	} else {
		offset = 40 - phase
	}
	x0 := 20 + offset*(frameWidth-120)/20
	block := image.Rect(x0, frameHeight/3, x0+80, frameHeight)

	for y := block.Min.Y; y < block.Max.Y; y++ {
		for x := block.Min.X; x < block.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 30})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
