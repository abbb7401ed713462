package manifest

// Gitignore is written into every repository created from a template.
const Gitignore = `__pycache__/
*.pyc
*.pyo
*.pyd
.Python
*.so
*.egg
*.egg-info/
dist/
build/
.env
.venv
venv/
ENV/
db.sqlite3
*.log
.DS_Store
node_modules/
`
