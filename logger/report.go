package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	errorsInstitutional int64
	errorsPCRatio       int64
	warnsInstitutional  int64
	warnsPCRatio        int64
	tableFetches        int64
	csvFetches          int64
	bytesFetched        int64
	artifactWrites      int64
	bytesWritten        int64
)

func recordWarn(component string) {
	if strings.Contains(component, "pc_ratio") {
		atomic.AddInt64(&warnsPCRatio, 1)
	} else if strings.Contains(component, "institutional") {
		atomic.AddInt64(&warnsInstitutional, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "pc_ratio") {
		atomic.AddInt64(&errorsPCRatio, 1)
	} else if strings.Contains(component, "institutional") {
		atomic.AddInt64(&errorsInstitutional, 1)
	}
}

// IncrementTableFetch records one completed table-endpoint fetch of the
// given response size.
func IncrementTableFetch(size int) {
	atomic.AddInt64(&tableFetches, 1)
	atomic.AddInt64(&bytesFetched, int64(size))
}

// IncrementCSVFetch records one completed delimited-download fetch of the
// given response size.
func IncrementCSVFetch(size int) {
	atomic.AddInt64(&csvFetches, 1)
	atomic.AddInt64(&bytesFetched, int64(size))
}

// IncrementArtifactWrite records one persisted artifact of the given size.
func IncrementArtifactWrite(size int) {
	atomic.AddInt64(&artifactWrites, 1)
	atomic.AddInt64(&bytesWritten, int64(size))
}

// RunReport logs an end-of-run summary of crawl and system statistics and
// publishes the counters to CloudWatch when the client is configured.
func RunReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"errors_institutional": atomic.LoadInt64(&errorsInstitutional),
		"errors_pc_ratio":      atomic.LoadInt64(&errorsPCRatio),
		"warns_institutional":  atomic.LoadInt64(&warnsInstitutional),
		"warns_pc_ratio":       atomic.LoadInt64(&warnsPCRatio),
		"table_fetches":        atomic.LoadInt64(&tableFetches),
		"csv_fetches":          atomic.LoadInt64(&csvFetches),
		"bytes_fetched":        atomic.LoadInt64(&bytesFetched),
		"artifact_writes":      atomic.LoadInt64(&artifactWrites),
		"bytes_written":        atomic.LoadInt64(&bytesWritten),
		"goroutines":           runtime.NumGoroutine(),
		"cpu_percent":          cpuPct,
		"memory_mb":            memMB,
	}

	log.WithComponent("report").WithFields(fields).Info("run report")

	errorsTotal := atomic.LoadInt64(&errorsInstitutional) + atomic.LoadInt64(&errorsPCRatio)
	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("TableFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tableFetches)))},
		{MetricName: aws.String("CSVFetches"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&csvFetches)))},
		{MetricName: aws.String("ArtifactWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&artifactWrites)))},
		{MetricName: aws.String("BytesFetched"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(atomic.LoadInt64(&bytesFetched)))},
		{MetricName: aws.String("BytesWritten"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(atomic.LoadInt64(&bytesWritten)))},
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(errorsTotal))},
	}
	publishMetrics(ctx, data)
}
