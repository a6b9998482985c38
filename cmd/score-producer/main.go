// score-producer is a load generator: it floods the score topic with
// submissions from synthetic players to exercise the ingestion path.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// Submission mirrors the consumer's message format
type Submission struct {
	PlayerKey string `json:"player_key"`
	Score     int64  `json:"score"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf",
	"Hawk", "Viper", "Ghost", "Titan", "Frost", "Nova", "Raven", "Luna",
	"Mystic", "Orion", "Spark", "Turbo",
}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "fluentquest-scores", "Kafka topic")
	totalPlayers := flag.Int("players", 100, "Total number of synthetic players")
	updatesPerSecond := flag.Int("rate", 50, "Updates per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Printf("score producer: brokers=%s topic=%s players=%d rate=%d/s\n",
		*brokers, *topic, *totalPlayers, *updatesPerSecond)

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendMessage := func(submission Submission) {
		data, err := json.Marshal(submission)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(submission.PlayerKey),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	interval := time.Second / time.Duration(*updatesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var updateCount int64

	fmt.Println("Press Ctrl+C to stop")

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			// Cumulative scores grow over time so the table keeps moving
			playerIdx := rand.Intn(*totalPlayers)
			submission := Submission{
				PlayerKey: playerName(playerIdx),
				Score:     int64(rand.Intn(500) + 1),
			}
			sendMessage(submission)
			atomic.AddInt64(&updateCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Updates: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&updateCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
