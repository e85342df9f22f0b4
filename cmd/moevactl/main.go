package main

import (
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	root := &cobra.Command{
		Use:           "moevactl",
		Short:         "Multi-objective evolutionary adversarial attack runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newZDT1Command())

	if err := root.Execute(); err != nil {
		klog.ErrorS(err, "command failed")
		os.Exit(1)
	}
}
