package main

import (
	"context"

	"caseharvest/cmd/caseharvest/commands"
	"caseharvest/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "caseharvest")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
