// Command cindextest is a golden-output regression harness for cindex. For
// every preprocessed C file matching the test glob it runs the indexer,
// compares stdout against the file's golden record, and reports a PASS/FAIL
// table plus a JSON summary. Goldens are keyed by a hash of the input so a
// stale golden is detected instead of silently compared.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

type Golden struct {
	InputHash string   `json:"input_hash"`
	Args      []string `json:"args,omitempty"`
	Stdout    string   `json:"stdout"`
	ExitCode  int      `json:"exitCode"`
}

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	indexer        = flag.String("indexer", "./cindex", "Path to the indexer binary to test.")
	indexerArgs    = flag.String("indexer-args", "", "Extra arguments for the indexer (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.i", "Glob pattern(s) for files to test (space-separated).")
	generateGolden = flag.Bool("generate-golden", false, "Regenerate the golden file for every matched input.")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each indexer run.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cGreen  = "\x1b[92m"
	cYellow = "\x1b[93m"
	cReset  = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	var inputs []string
	for _, pattern := range strings.Fields(*testFiles) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Fatalf("bad glob %q: %v", pattern, err)
		}
		inputs = append(inputs, matches...)
	}
	sort.Strings(inputs)
	if len(inputs) == 0 {
		log.Fatalf("no test files match %q", *testFiles)
	}

	extraArgs := strings.Fields(*indexerArgs)
	results := make(map[string]*FileTestResult, len(inputs))
	failed := 0
	for _, input := range inputs {
		res := testOne(input, extraArgs)
		results[input] = res
		switch res.Status {
		case "PASS":
			fmt.Printf("%sPASS%s %s\n", cGreen, cReset, input)
		case "SKIP":
			fmt.Printf("%sSKIP%s %s: %s\n", cYellow, cReset, input, res.Message)
		default:
			failed++
			fmt.Printf("%sFAIL%s %s: %s\n", cRed, cReset, input, res.Message)
			if res.Diff != "" && *verbose {
				fmt.Println(res.Diff)
			}
		}
	}

	if *outputJSON != "" {
		buf, err := json.MarshalIndent(results, "", "  ")
		if err == nil {
			err = os.WriteFile(*outputJSON, buf, 0o644)
		}
		if err != nil {
			log.Printf("could not write %s: %v", *outputJSON, err)
		}
	}

	fmt.Printf("%d/%d passed\n", len(inputs)-failed, len(inputs))
	if failed > 0 {
		os.Exit(1)
	}
}

func testOne(input string, extraArgs []string) *FileTestResult {
	source, err := os.ReadFile(input)
	if err != nil {
		return &FileTestResult{File: input, Status: "ERROR", Message: err.Error()}
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(source))

	args := append(append([]string{}, extraArgs...), input)
	run := runIndexer(args)
	if run.TimedOut {
		return &FileTestResult{File: input, Status: "ERROR", Message: "indexer timed out"}
	}
	if *verbose {
		log.Printf("%s: exit %d in %s", input, run.ExitCode, run.Duration)
	}

	goldenPath := input + ".golden.json"
	if *generateGolden {
		g := Golden{InputHash: hash, Args: extraArgs, Stdout: run.Stdout, ExitCode: run.ExitCode}
		buf, err := json.MarshalIndent(g, "", "  ")
		if err == nil {
			err = os.WriteFile(goldenPath, buf, 0o644)
		}
		if err != nil {
			return &FileTestResult{File: input, Status: "ERROR", Message: err.Error()}
		}
		return &FileTestResult{File: input, Status: "PASS", Message: "golden regenerated"}
	}

	buf, err := os.ReadFile(goldenPath)
	if err != nil {
		return &FileTestResult{File: input, Status: "SKIP", Message: "no golden file; run with -generate-golden"}
	}
	var golden Golden
	if err := json.Unmarshal(buf, &golden); err != nil {
		return &FileTestResult{File: input, Status: "ERROR", Message: "malformed golden: " + err.Error()}
	}
	if golden.InputHash != hash {
		return &FileTestResult{File: input, Status: "SKIP",
			Message: "input changed since golden was generated; run with -generate-golden"}
	}

	if diff := cmp.Diff(golden.Stdout, run.Stdout); diff != "" {
		return &FileTestResult{File: input, Status: "FAIL", Message: "output mismatch", Diff: diff}
	}
	if golden.ExitCode != run.ExitCode {
		return &FileTestResult{File: input, Status: "FAIL",
			Message: fmt.Sprintf("exit code %d, golden has %d", run.ExitCode, golden.ExitCode)}
	}
	return &FileTestResult{File: input, Status: "PASS"}
}

func runIndexer(args []string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, *indexer, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		TimedOut: ctx.Err() == context.DeadlineExceeded,
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil && !res.TimedOut {
		res.ExitCode = -1
		res.Stderr += "\n" + err.Error()
	}
	return res
}
