package workflow

// Module identifiers for the built-in assistant pipeline.
const (
	ModuleTaskIntake     = "task-intake"
	ModulePlanGeneration = "plan-generation"
	ModulePlanExecution  = "plan-execution"
	ModuleReport         = "report"
)

// AssistantPipelineID names the default task pipeline.
const AssistantPipelineID = "assistant-task"

// AssistantPipeline returns the built-in pipeline definition: intake the task,
// generate a plan, execute it against the tool registry, then summarize.
func AssistantPipeline() PipelineDefinition {
	return PipelineDefinition{
		ID:          AssistantPipelineID,
		Name:        "Assistant Task",
		Description: "Plans and executes a household task with the planner/executor agent pair.",
		Modules: []ModuleRef{
			{ModuleID: ModuleTaskIntake, Name: "Task Intake"},
			{ModuleID: ModulePlanGeneration, Name: "Plan Generation", DependsOn: []string{ModuleTaskIntake}},
			{ModuleID: ModulePlanExecution, Name: "Plan Execution", DependsOn: []string{ModulePlanGeneration}},
			{ModuleID: ModuleReport, Name: "Report", DependsOn: []string{ModulePlanExecution}},
		},
		Runtime: RuntimeConfig{MaxParallel: 1},
	}
}
