package workers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vitalink/teleconsult/internal/providers/stt"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/session"
	"github.com/vitalink/teleconsult/internal/storage"
)

// AudioWorkerPool consumes raw consultation audio chunks from a Redis
// stream, transcribes them, and feeds the finalized segments into the live
// session machines. A failed chunk is marked failed and acked, never retried
// in a loop; persistent capture failure surfaces as failed-status events
// rather than a silent retry spiral.
type AudioWorkerPool struct {
	Redis    *redis.Client
	Consults services.ConsultService
	STT      stt.Provider
	Uploader storage.Uploader

	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *AudioWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Consults == nil || p.STT == nil {
		return errors.New("AudioWorkerPool missing dependency: Redis/Consults/STT must be set")
	}
	if p.Stream == "" {
		p.Stream = "consult:audio"
	}
	if p.Group == "" {
		p.Group = "consult-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *AudioWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *AudioWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	seqStr := getStr("seq")
	if sessionID == "" || seqStr == "" {
		return
	}
	seq, _ := strconv.ParseInt(seqStr, 10, 64)

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
		"seq":        seq,
	})

	audioBytes, err := p.fetchAudio(ctx, getStr("audio_base64"), getStr("audio_url"))
	if err != nil {
		log.WithError(err).Warn("audio chunk unusable")
		p.publishStatus(ctx, sessionID, seq, "failed", "unusable audio chunk")
		return
	}

	audioRef := ""
	if p.Uploader != nil {
		object := fmt.Sprintf("consult/%s/%06d.pcm", sessionID, seq)
		path, uerr := p.Uploader.Upload(ctx, object, "audio/l16", bytes.NewReader(audioBytes))
		if uerr != nil {
			log.WithError(uerr).Debug("audio archive upload failed")
		} else {
			audioRef = path
		}
	}

	p.publishStatus(ctx, sessionID, seq, "processing", "transcribing")

	text, conf, err := p.STT.Transcribe(ctx, audioBytes, getStr("language"))
	if err != nil {
		log.WithError(err).Error("stt failed")
		p.publishStatus(ctx, sessionID, seq, "failed", "transcription failed")
		return
	}
	if strings.TrimSpace(text) == "" {
		p.publishStatus(ctx, sessionID, seq, "done", "no speech detected")
		return
	}

	seg := session.Segment{Text: text, Confidence: conf, AudioRef: audioRef}
	if err := p.Consults.IngestSegment(ctx, sessionID, seg); err != nil {
		log.WithError(err).Warn("segment rejected")
		p.publishStatus(ctx, sessionID, seq, "failed", "session not accepting segments")
		return
	}

	p.publishStatus(ctx, sessionID, seq, "done", "chunk processed")
}

func (p *AudioWorkerPool) fetchAudio(ctx context.Context, b64, url string) ([]byte, error) {
	if b64 != "" {
		raw := b64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		return base64.StdEncoding.DecodeString(raw)
	}

	if url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		const maxBytes = 10 << 20
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
		if len(body) == 0 {
			return nil, errors.New("empty audio body")
		}
		return body, nil
	}

	return nil, errors.New("no audio payload")
}

func (p *AudioWorkerPool) publishStatus(ctx context.Context, sessionID string, seq int64, status, message string) {
	ch := "consult:" + sessionID + ":status"
	payload := fmt.Sprintf(`{"type":"status","status":%q,"message":%q,"seq":%d}`, status, message, seq)
	_ = p.Redis.Publish(ctx, ch, payload).Err()
}
