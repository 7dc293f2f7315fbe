package metrics

const namespace = "intake"
