package config

// TaskSpec binds one task function (by registry name) to a bus subject.
// An empty Queue means a plain subscription; a non-empty Queue joins the
// (subject, queue) group so each message is delivered to one member only.
type TaskSpec struct {
	Subject string `mapstructure:"subject" validate:"required"`
	Queue   string `mapstructure:"queue"`
	Task    string `mapstructure:"task" validate:"required"`
}

// WorkerSettings configures a single worker instance. Name doubles as the
// control subject the worker listens on for START/STOP signals. Tasks are
// registered in the order they appear here.
type WorkerSettings struct {
	Name  string     `mapstructure:"name" validate:"required"`
	Tasks []TaskSpec `mapstructure:"tasks" validate:"dive"`
}

// LogSettings configures the structured logger.
type LogSettings struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}
