package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const RunLogName = "emseq.log"

type LogEntry struct {
	Timestamp string `json:"time"`
	Level     string `json:"level"`
	Tool      string `json:"msg"`
	Step      string `json:"STEP"`
	Input     string `json:"INPUT"`
	Status    string `json:"STATUS"`
}

// RunLog appends JSON stage records to emseq.log in the output directory.
type RunLog struct {
	Path   string
	file   *os.File
	logger *slog.Logger
}

func NewRunLog(outDir string) (*RunLog, error) {
	if err := EnsureDir(outDir); err != nil {
		return nil, err
	}
	logFilePath := filepath.Join(outDir, RunLogName)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	jsonHandler := slog.NewJSONHandler(logFile, nil)
	return &RunLog{Path: logFilePath, file: logFile, logger: slog.New(jsonHandler)}, nil
}

func (r *RunLog) Started(step, input string) {
	r.logger.Info("EMSEQ", "STEP", step, "INPUT", input, "STATUS", "STARTED")
}

func (r *RunLog) Completed(step, input string) {
	r.logger.Info("EMSEQ", "STEP", step, "INPUT", input, "STATUS", "COMPLETED")
}

func (r *RunLog) Failed(step, input string, err error) {
	r.logger.Error("EMSEQ", "STEP", step, "INPUT", input, "STATUS", fmt.Sprintf("FAILED- %v", err))
}

func (r *RunLog) Close() error {
	return r.file.Close()
}

// ParseLogFile reads a run log. Missing files and malformed lines yield no entries.
func ParseLogFile(logFilePath string) []LogEntry {
	var entries []LogEntry

	f, err := os.Open(logFilePath)
	if err != nil {
		return entries
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// StageHasCompleted reports whether the latest record for step and input is COMPLETED.
func StageHasCompleted(entries []LogEntry, step, input string) bool {
	completed := false
	for _, e := range entries {
		if e.Step != step || e.Input != input {
			continue
		}
		completed = e.Status == "COMPLETED"
	}
	return completed
}
