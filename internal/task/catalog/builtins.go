package catalog

import (
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/diskcheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/healthcheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/javacheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/javainstall"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/portcheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/ramcheck"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/tomcatinstall"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/tomcatstart"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/tomcatstop"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/task/tomcatuninstall"
)

type entry struct {
	name string
	ctor task.Constructor
}

// Builtins returns a registry holding every built-in tool.
func Builtins() (*task.Registry, error) {
	entries := []entry{
		{diskcheck.Name, diskcheck.New},
		{ramcheck.Name, ramcheck.New},
		{portcheck.Name, portcheck.New},
		{javacheck.Name, javacheck.New},
		{javainstall.Name, javainstall.New},
		{tomcatinstall.Name, tomcatinstall.New},
		{tomcatstart.Name, tomcatstart.New},
		{tomcatstop.Name, tomcatstop.New},
		{tomcatuninstall.Name, tomcatuninstall.New},
		{healthcheck.Name, healthcheck.New},
	}

	r := task.NewRegistry()
	for _, e := range entries {
		if err := r.Register(e.name, e.ctor); err != nil {
			return nil, err
		}
	}
	return r, nil
}
