package main

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printHeading(msg string) {
	accent.Println(msg)
}

func printOK(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printKV(key string, value any) {
	neutral.Printf("  %-18s %v\n", key, fmt.Sprint(value))
}
