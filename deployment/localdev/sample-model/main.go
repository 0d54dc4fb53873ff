package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/miradorstack/workload-classifier/internal/catboost/catboosttest"
)

// Writes the three-class demo workload model so the service can be run
// locally without a trained artifact.
//
// Real artifacts must keep active_config one-hot encoded. CatBoost switches a
// categorical feature to CTR encodings once it has more distinct values than
// one_hot_max_size, and the evaluator rejects CTR models. Train with
// one_hot_max_size set to at least the number of active_config values, then
// export with save_model(path, format="json").
func main() {
	out := flag.String("out", "model/catboost_model.json", "Artifact path to write")
	withClasses := flag.Bool("classes", true, "Embed class names in model_info")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(flag.CommandLine.Output(), "Trained artifacts need one_hot_max_size >= the number of active_config values;")
		fmt.Fprintln(flag.CommandLine.Output(), "models exported with CTR encodings are rejected at load time.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	data := catboosttest.WorkloadModel()
	if !*withClasses {
		data = catboosttest.WorkloadModelWithoutClasses()
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("create %s: %v", filepath.Dir(*out), err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("wrote demo model to %s (classes: %v)", *out, catboosttest.Classes)
}
