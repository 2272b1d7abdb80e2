package main

import "github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/cli"

func main() {
	cli.Execute()
}
