// Package logger wraps zap for the bundler binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (Infof, ErrorKV, etc.),
//   - an io.Writer adapter that forwards child process output line by line.
//
// Pipeline steps accept a context and extract the logger from it, so every
// message carries the step name that produced it.
package logger
