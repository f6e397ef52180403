// Command sensor-client reads a temperature/humidity sensor and reports to
// the basement monitor every few seconds until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basement-monitor/internal/logging"
	"basement-monitor/internal/mqtt"
	"basement-monitor/internal/sensor"
)

func main() {
	verbose := flag.Bool("v", false, "verbose mode; echoes message contents")
	deviceID := flag.String("device", "RazPi_01", "device name used in readings")
	url := flag.String("url", "http://localhost:8000/readings/", "readings endpoint")
	interval := flag.Duration("interval", 5*time.Second, "delay between sensor readings")
	broker := flag.String("mqtt-broker", "", "publish over MQTT to this broker instead of HTTP")
	topic := flag.String("mqtt-topic", "sensors/readings", "MQTT topic")
	replay := flag.String("replay", "", "CSV of temp_c,humidity rows to replay instead of simulating")
	flag.Parse()

	logger := logging.Console("info")

	source, err := openSource(*replay)
	if err != nil {
		log.Fatal(err)
	}

	var sink sensor.Sink
	if *broker != "" {
		pub, err := mqtt.NewPublisher(*broker, *deviceID, *topic)
		if err != nil {
			log.Fatal(err)
		}
		defer pub.Close()
		sink = pub
	} else {
		httpSink := sensor.NewHTTPSink(*url)
		if *verbose {
			httpSink.OnResponse = func(status int, body []byte) {
				logger.Infof("Status: %d Content: %s", status, body)
			}
		}
		sink = httpSink
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Client started, press Ctrl-C to stop...")
	loop := &sensor.Loop{
		DeviceID: *deviceID,
		Interval: *interval,
		Source:   source,
		Sink:     sink,
		Logger:   logger,
		Verbose:  *verbose,
	}
	sent, err := loop.Run(ctx)
	if err != nil {
		logger.Errorf("Sensor read failed: %v", err)
	}
	logger.Infof("Client stopped after %d readings", sent)
}

func openSource(replay string) (sensor.Source, error) {
	if replay == "" {
		return sensor.NewSimulated(sensor.Sample{TempC: 18, Humidity: 45}, 0.5, time.Now().UnixNano()), nil
	}
	f, err := os.Open(replay)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()
	return sensor.NewReplay(f)
}
