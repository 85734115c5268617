// Command bootimg unpacks, repacks, and inspects MediaTek and OPPO boot
// logo/splash image containers from the command line.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

func main() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	root := &cobra.Command{
		Use:           "bootimg",
		Short:         "Unpack, repack, and inspect boot-logo/splash-image containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newUnpackCmd(),
		newRepackCmd(),
		newInfoCmd(),
		newExtractCmd(),
		newReplaceCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
