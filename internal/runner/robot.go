package runner

import "github.com/bednajedna/parabot/internal/job"

// DefaultRobot is the binary name resolved via PATH.
const DefaultRobot = "robot"

// Robot builds Robot Framework command lines.
//
//	file job: robot --outputdir <dir> [args] <file>
//	tag job:  robot --outputdir <dir> --include <tag> [args] ./
type Robot struct {
	Binary string
	Args   []string
	Env    []string
}

func (r Robot) Command(j job.Job) Command {
	binary := r.Binary
	if binary == "" {
		binary = DefaultRobot
	}
	args := []string{"--outputdir", j.OutputDir}
	var target string
	switch j.Kind {
	case job.KindTag:
		args = append(args, "--include", j.Target)
		target = "./"
	default:
		target = j.Target
	}
	args = append(args, r.Args...)
	args = append(args, target)
	return Command{
		Path: binary,
		Args: args,
		Env:  append([]string(nil), r.Env...),
		Dir:  j.WorkDir,
	}
}
