package common

// Model families
const MODEL_LINEAR = "linear"
const MODEL_LOGISTIC = "logistic"

// Mixing methods
const MIXING_METROPOLIS = "metropolis"
const MIXING_LAPLACIAN = "laplacian"

// Update strategies
const STRATEGY_ADAPT_THEN_COMBINE = "adaptThenCombine"
const STRATEGY_COMBINE_THEN_ADAPT = "combineThenAdapt"

// Defaults
const DEFAULT_LEARNING_RATE = 0.01
const DEFAULT_TOLERANCE = 1e-6
const DEFAULT_MAX_ROUNDS = 500
const DEFAULT_MAX_RETRIES = 3
const DEFAULT_NORM_BOUND = 1e6

// Events
const ROUND_COMPLETED_EVENT_TYPE = "RoundCompleted"
const RUN_FINISHED_EVENT_TYPE = "RunFinished"

// Run statuses
const RUN_STATUS_RUNNING = "Running"
const RUN_STATUS_CONVERGED = "Converged"
const RUN_STATUS_BUDGET_EXHAUSTED = "RoundBudgetExhausted"
const RUN_STATUS_DIVERGED = "Diverged"
const RUN_STATUS_CANCELLED = "Cancelled"
