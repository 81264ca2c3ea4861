// gomlx_exec_inspect prints the descriptors of a saved executable, and optionally runs it and
// reports its performance counters.
//
// Usage:
//
//	gomlx_exec_inspect [flags] <executable_file>
//
// To create an example executable with the reference backend:
//
//	gomlx_exec_inspect -example /tmp/example.exec
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gomlx/runtime/backends"
	"github.com/gomlx/runtime/backends/perfmetrics"
	_ "github.com/gomlx/runtime/backends/reference"
	"github.com/janpfeifer/must"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "ref",
		"Backend configuration used to load the executable, see "+backends.GOMLX_BACKEND+" for the format.")
	flagExample = flag.Bool("example", false, "Instead of inspecting the file, compile an example graph and save it to the file.")
	flagRun     = flag.Int("run", 0, "Number of times to execute the executable, with inputs set to -fill.")
	flagFill    = flag.Float64("fill", 0, "Value of all input elements, narrowed to each parameter dtype.")
	flagAsync   = flag.Bool("async", false, "Schedule all -run executions at once with BeginExecute, and then await them.")
	flagPerf    = flag.Bool("perf", false, "Enable the backend performance counters (\"perf\" option) and print them after -run.")

	flagMetricsAddr = flag.String("metrics_addr", "",
		"If set (e.g. \":9090\"), after the runs keep serving the performance counters as Prometheus metrics on /metrics.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing executable file. See 'gomlx_exec_inspect -help'")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'gomlx_exec_inspect -help'.")
		os.Exit(1)
	}

	config := *flagBackend
	if *flagPerf {
		config = withOption(config, "perf")
	}
	backend := must.M1(backends.NewWithConfig(config))
	defer backend.Finalize()

	if *flagExample {
		must.M(saveExample(backend, args[0]))
		fmt.Printf("Example executable saved to %q\n", args[0])
		return
	}
	report(backend, args[0])
}

// withOption appends option to the backend configuration "<backend_name>:<options>".
func withOption(config, option string) string {
	if !strings.Contains(config, ":") {
		return config + ":" + option
	}
	if strings.HasSuffix(config, ":") {
		return config + option
	}
	return config + "," + option
}

func report(backend backends.Backend, filePath string) {
	e := must.M1(loadExecutable(backend, filePath))
	defer e.Finalize()

	fmt.Println(titleStyle.Render("Summary"))
	fmt.Println(summaryTable(filePath, e).Render())
	fmt.Println(titleStyle.Render("Parameters and Results"))
	fmt.Println(descriptorsTable(e).Render())

	if *flagRun <= 0 {
		return
	}
	inputs := must.M1(filledInputs(e, *flagFill))
	stats := must.M1(runExecutable(e, inputs, *flagRun, *flagAsync))
	fmt.Println(titleStyle.Render("Execution"))
	fmt.Println(runTable(stats).Render())

	counters := e.PerformanceData()
	if len(counters) > 0 {
		fmt.Println(titleStyle.Render("Performance"))
		fmt.Println(perfTable(counters).Render())
	} else if *flagPerf {
		klog.Warningf("Backend %q reported no performance counters", backend.Name())
	}

	if *flagMetricsAddr != "" {
		collector := perfmetrics.NewCollector()
		collector.Add(e.Name(), e)
		registry := prometheus.NewRegistry()
		registry.MustRegister(collector)
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		klog.Infof("Serving metrics on %s/metrics", *flagMetricsAddr)
		if err := http.ListenAndServe(*flagMetricsAddr, nil); err != nil {
			klog.Errorf("Metrics server failed: %+v", err)
			os.Exit(1)
		}
	}
}
