package main

import (
	"os"
	"os/exec"
)

// runBuildDockerImage shells out to build the worker image the pool starts
// containers from.
func runBuildDockerImage(args []string) {
	cmd := exec.Command("docker", "build", "--tag", "codescord", ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fatal("docker build failed", "error", err)
	}
}
